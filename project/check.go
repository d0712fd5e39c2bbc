package project

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/validation"
)

// ValidateDocument reports structural problems that would make a document
// load differently than written: missing class names, duplicate node ids
// and connections that name no node or pin.
func ValidateDocument(doc *dag.Document) error {
	v := validation.New()
	if doc == nil {
		return v.Fail("document", "document is nil").Err()
	}

	ids := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		nv := v.At("nodes[%d]", i)
		nv.Required("class_name", n.ClassName).
			Required("id", n.ID).
			Unique("id", n.ID, ids)
		for name, p := range n.InputPins {
			nv.Check(p.Type == "" || p.Type.Valid(), "input_pins."+name, "unknown pin type %q", p.Type)
		}
		for name, p := range n.OutputPins {
			nv.Check(p.Type == "" || p.Type.Valid(), "output_pins."+name, "unknown pin type %q", p.Type)
		}
	}

	for i, c := range doc.Connections {
		cv := v.At("connections[%d]", i)
		cv.Required("output_pin_name", c.OutputPinName).
			Required("input_pin_name", c.InputPinName).
			Check(ids[c.OutputNodeID], "output_node_id", "unknown node %q", c.OutputNodeID).
			Check(ids[c.InputNodeID], "input_node_id", "unknown node %q", c.InputNodeID)
	}
	return v.Err()
}

// Fingerprint is the hex BLAKE2b-256 of the document's JSON encoding with
// connection and pin ids left out, since those are regenerated on every
// load. Map keys are encoded sorted, so equal documents hash equally.
func Fingerprint(doc *dag.Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("document is nil")
	}
	canonical := *doc
	canonical.Connections = make([]dag.ConnectionDocument, len(doc.Connections))
	for i, c := range doc.Connections {
		c.ID, c.OutputPinID, c.InputPinID = "", "", ""
		canonical.Connections[i] = c
	}
	data, err := json.Marshal(&canonical)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Report is the outcome of checking a document without running it.
type Report struct {
	Valid          bool                  `json:"valid"`
	Fingerprint    string                `json:"fingerprint"`
	Errors         []dag.ValidationIssue `json:"errors"`
	Warnings       []dag.ValidationIssue `json:"warnings"`
	LoadWarnings   []string              `json:"load_warnings,omitempty"`
	ExecutionOrder []string              `json:"execution_order,omitempty"`
}

// Check validates doc, builds it against reg and validates the resulting
// graph. Structural problems in the document are returned as an error;
// graph problems are reported. ExecutionOrder lists node names and is only
// set for valid graphs.
func Check(doc *dag.Document, reg *dag.Registry, opts ...dag.GraphOption) (*Report, error) {
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	fingerprint, err := Fingerprint(doc)
	if err != nil {
		return nil, err
	}
	g, load, err := Build(doc, reg, opts...)
	if err != nil {
		return nil, err
	}

	result := g.Validate()
	r := &Report{
		Valid:        result.IsValid(),
		Fingerprint:  fingerprint,
		Errors:       nonNil(result.Errors),
		Warnings:     nonNil(result.Warnings),
		LoadWarnings: load.Warnings,
	}
	if r.Valid {
		if order, err := g.ExecutionOrder(); err == nil {
			for _, n := range order {
				r.ExecutionOrder = append(r.ExecutionOrder, n.Base().Name())
			}
		}
	}
	return r, nil
}

func nonNil(issues []dag.ValidationIssue) []dag.ValidationIssue {
	if issues == nil {
		return []dag.ValidationIssue{}
	}
	return issues
}
