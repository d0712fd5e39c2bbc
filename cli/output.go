package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/project"
	"github.com/kbukum/pixelflow/runner"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusIcon(s dag.Status) string {
	switch s {
	case dag.StatusCompleted:
		return "✓"
	case dag.StatusFailed:
		return "✗"
	case dag.StatusCancelled:
		return "⊘"
	default:
		return "-"
	}
}

func printSummary(w io.Writer, s *runner.Summary) {
	title := s.RunID
	if s.Project != "" {
		title = s.Project
	}
	fmt.Fprintf(w, "%s %s %s in %s (%d nodes, %d connections)\n",
		statusIcon(s.Status), title, s.Status, time.Duration(s.DurationMs)*time.Millisecond, s.Nodes, s.Connections)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range s.NodeResults {
		line := fmt.Sprintf("  %s\t%s\t%s\t%dms", statusIcon(n.Status), n.Name, n.ClassName, n.DurationMs)
		if n.Error != "" {
			line += "\t" + n.Error
		}
		fmt.Fprintln(tw, line)
	}
	_ = tw.Flush()

	var values []string
	for _, o := range s.Outputs {
		if len(o.Values) == 0 {
			continue
		}
		values = append(values, fmt.Sprintf("  %s: %s", o.Name, formatValues(o.Values)))
	}
	if len(values) > 0 {
		fmt.Fprintln(w, "outputs:")
		fmt.Fprintln(w, strings.Join(values, "\n"))
	}
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func formatValues(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, values[k])
	}
	return strings.Join(parts, " ")
}

func printReport(w io.Writer, path string, r *project.Report) {
	if r.Valid {
		fmt.Fprintf(w, "✓ %s is valid\n", path)
		if len(r.ExecutionOrder) > 0 {
			fmt.Fprintf(w, "order: %s\n", strings.Join(r.ExecutionOrder, " → "))
		}
	} else {
		fmt.Fprintf(w, "✗ %s has %d error(s)\n", path, len(r.Errors))
	}
	for _, issue := range r.Errors {
		fmt.Fprintf(w, "error: [%s] %s\n", issue.Kind, issue.Message)
	}
	for _, issue := range r.Warnings {
		fmt.Fprintf(w, "warning: [%s] %s\n", issue.Kind, issue.Message)
	}
	for _, warning := range r.LoadWarnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func printNodes(w io.Writer, kinds []dag.Metadata) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tCATEGORY\tDESCRIPTION")
	for _, m := range kinds {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ClassName, m.Category, m.Description)
	}
	_ = tw.Flush()
}
