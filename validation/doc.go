// Package validation provides input validation for configuration, API
// requests and project documents.
//
// Struct tag validation uses go-playground/validator and reports field names
// by their json or mapstructure tag. Programmatic validation collects every
// problem before failing, which is how project documents are checked.
//
// # Struct Tag Validation
//
//	type RunRequest struct {
//	    NodeID string `json:"node_id" validate:"omitempty,uuid"`
//	}
//	err := validation.Validate(req)
//
// # Programmatic Validation
//
//	v := validation.New()
//	for i, n := range doc.Nodes {
//	    v.At("nodes[%d]", i).Required("id", n.ID).Unique("id", n.ID, seen)
//	}
//	err := v.Err()
package validation
