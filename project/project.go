package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

// Format is a project file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding for path from its extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Project is a document read from disk.
type Project struct {
	Path        string
	Format      Format
	Document    *dag.Document
	Fingerprint string
}

// Dir is the directory relative paths inside the project resolve against.
func (p *Project) Dir() string {
	return filepath.Dir(p.Path)
}

// Decode parses a document.
func Decode(data []byte, f Format) (*dag.Document, error) {
	var doc dag.Document
	var err error
	switch f {
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode serializes a document.
func Encode(doc *dag.Document, f Format) ([]byte, error) {
	if f == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Load reads, decodes and checks the project at path.
func Load(path string) (*Project, error) {
	log := logger.Get(logger.ComponentProject)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ProjectLoad(path, err)
	}
	f := FormatFor(path)
	doc, err := Decode(data, f)
	if err != nil {
		return nil, errors.ProjectLoad(path, fmt.Errorf("parsing %s: %w", f, err))
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, errors.ProjectLoad(path, err)
	}
	sum, err := Fingerprint(doc)
	if err != nil {
		return nil, errors.ProjectLoad(path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	log.Debug("project loaded", logger.Fields("path", abs, "nodes", len(doc.Nodes), "connections", len(doc.Connections)))
	return &Project{Path: abs, Format: f, Document: doc, Fingerprint: sum}, nil
}

// Save writes doc to path in the format its extension selects. Parent
// directories are created and the file is replaced atomically.
func Save(path string, doc *dag.Document) error {
	if doc == nil {
		return errors.InvalidInput("document", "document is nil")
	}
	data, err := Encode(doc, FormatFor(path))
	if err != nil {
		return errors.ProjectSave(path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.ProjectSave(path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.ProjectSave(path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.ProjectSave(path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.ProjectSave(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.ProjectSave(path, err)
	}

	logger.Get(logger.ComponentProject).Debug("project saved", logger.Fields("path", path, "bytes", len(data)))
	return nil
}

// Build creates a graph from doc with the kinds in reg.
func Build(doc *dag.Document, reg *dag.Registry, opts ...dag.GraphOption) (*dag.Graph, *dag.LoadReport, error) {
	g := dag.NewGraph(opts...)
	report, err := g.LoadDocument(doc, reg)
	if err != nil {
		return nil, nil, err
	}
	return g, report, nil
}
