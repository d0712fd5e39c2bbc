package cli

import (
	"context"
	"fmt"

	"github.com/kbukum/pixelflow/bootstrap"
	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/nodes"
	"github.com/kbukum/pixelflow/project"
	"github.com/kbukum/pixelflow/runner"
)

func (e *env) run(ctx context.Context, args []string) int {
	fs := e.flagSet("run")
	configPath := fs.StringP("config", "c", "", "configuration file")
	node := fs.StringP("node", "n", "", "run only this node and its upstream dependencies")
	sets := fs.StringArrayP("set", "s", nil, "set a variable node before the run, as name=value (repeatable)")
	timeout := fs.DurationP("timeout", "t", 0, "cancel the run after this duration")
	baseDir := fs.String("base-dir", "", "directory for relative image paths (default: the project's directory)")
	outputDir := fs.StringP("output-dir", "o", "", "directory for relative SaveImage paths")
	save := fs.String("save", "", "write the executed graph, output values included, to this file")
	asJSON := fs.Bool("json", false, "print the run summary as JSON")
	if code, ok := e.parse(fs, args, 1); !ok {
		return code
	}
	path := fs.Arg(0)

	overrides, err := runner.ParseOverrides(*sets)
	if err != nil {
		fmt.Fprintf(e.stderr, "run: %v\n", err)
		return ExitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(e.stderr, "run: %v\n", err)
		return ExitUsage
	}
	if fs.Changed("output-dir") {
		cfg.Execution.OutputDir = *outputDir
	}
	if fs.Changed("timeout") {
		cfg.Execution.Timeout = *timeout
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithQuiet())
	if err != nil {
		fmt.Fprintf(e.stderr, "run: %v\n", err)
		return ExitUsage
	}
	eng, err := newEngine(ctx, app)
	if err != nil {
		return e.fail(err)
	}

	var summary *runner.Summary
	err = app.RunTask(ctx, func(ctx context.Context) error {
		p, err := project.Load(path)
		if err != nil {
			return err
		}
		opts := runner.Options{
			Node:      *node,
			Overrides: overrides,
			BaseDir:   *baseDir,
			Timeout:   cfg.Execution.Timeout,
			Project:   p.Path,
		}
		if opts.BaseDir == "" {
			opts.BaseDir = p.Dir()
		}

		run, err := eng.runner.Prepare(p.Document, opts)
		if err != nil {
			return err
		}
		summary, err = run.Execute(ctx)
		if *save != "" && summary != nil {
			if serr := project.Save(*save, run.Graph().ToDocument()); serr != nil && err == nil {
				err = serr
			}
		}
		return err
	})

	if summary != nil {
		if *asJSON {
			if werr := writeJSON(e.stdout, summary); werr != nil {
				return e.fail(werr)
			}
		} else {
			printSummary(e.stdout, summary)
		}
	}
	if err != nil {
		return e.fail(err)
	}
	if summary.Status == dag.StatusCancelled {
		return ExitCancelled
	}
	return ExitSuccess
}

func (e *env) validate(_ context.Context, args []string) int {
	fs := e.flagSet("validate")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if code, ok := e.parse(fs, args, 1); !ok {
		return code
	}

	p, err := project.Load(fs.Arg(0))
	if err != nil {
		return e.fail(err)
	}
	reg, err := nodes.NewRegistry(nodes.Deps{})
	if err != nil {
		return e.fail(err)
	}
	report, err := project.Check(p.Document, reg)
	if err != nil {
		return e.fail(err)
	}

	if *asJSON {
		if err := writeJSON(e.stdout, report); err != nil {
			return e.fail(err)
		}
	} else {
		printReport(e.stdout, p.Path, report)
	}
	if !report.Valid {
		return ExitInvalid
	}
	return ExitSuccess
}

func (e *env) nodes(args []string) int {
	fs := e.flagSet("nodes")
	category := fs.String("category", "", "only list kinds in this category")
	asJSON := fs.Bool("json", false, "print the kinds as JSON, pins included")
	if code, ok := e.parse(fs, args, 0); !ok {
		return code
	}

	reg, err := nodes.NewRegistry(nodes.Deps{})
	if err != nil {
		return e.fail(err)
	}
	var kinds []dag.Metadata
	for _, m := range reg.List() {
		if *category == "" || m.Category == *category {
			kinds = append(kinds, m)
		}
	}
	if len(kinds) == 0 {
		return e.fail(errors.NotFound("node category", *category))
	}

	if *asJSON {
		if err := writeJSON(e.stdout, kinds); err != nil {
			return e.fail(err)
		}
		return ExitSuccess
	}
	printNodes(e.stdout, kinds)
	return ExitSuccess
}
