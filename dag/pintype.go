package dag

import (
	"fmt"
	"strings"

	"github.com/kbukum/pixelflow/errors"
)

// PinType is the category of value a pin carries.
type PinType string

const (
	PinExec    PinType = "exec"
	PinBool    PinType = "bool"
	PinInt     PinType = "int"
	PinFloat   PinType = "float"
	PinString  PinType = "string"
	PinPath    PinType = "path"
	PinImage   PinType = "image"
	PinColor   PinType = "color"
	PinVector2 PinType = "vector2"
	PinVector3 PinType = "vector3"
	PinMatrix  PinType = "matrix"
	PinArray   PinType = "array"
	PinDict    PinType = "dict"
	PinAny     PinType = "any"
)

var pinTypes = []PinType{
	PinExec, PinBool, PinInt, PinFloat, PinString, PinPath, PinImage,
	PinColor, PinVector2, PinVector3, PinMatrix, PinArray, PinDict, PinAny,
}

// PinTypes returns every pin type in declaration order.
func PinTypes() []PinType {
	return append([]PinType(nil), pinTypes...)
}

// ParsePinType accepts both the value form ("int") and the persisted name
// form ("INT").
func ParsePinType(s string) (PinType, error) {
	t := PinType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", errors.InvalidInput("type", fmt.Sprintf("unknown pin type %q", s))
	}
	return t, nil
}

// Valid reports whether t is one of the declared pin types.
func (t PinType) Valid() bool {
	for _, known := range pinTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Name returns the upper-case name used in project documents.
func (t PinType) Name() string { return strings.ToUpper(string(t)) }

func (t PinType) String() string { return string(t) }

// MarshalText encodes the type by name.
func (t PinType) MarshalText() ([]byte, error) {
	return []byte(t.Name()), nil
}

// UnmarshalText decodes a type from either its name or its value.
func (t *PinType) UnmarshalText(b []byte) error {
	parsed, err := ParsePinType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// CompatibleWith is shorthand for IsCompatible(t, other).
func (t PinType) CompatibleWith(other PinType) bool { return IsCompatible(t, other) }

// IsCompatible reports whether pins of types a and b may be connected.
// The relation is symmetric: identical types, the any wildcard, the numeric
// pair {int, float} and the textual pair {string, path}.
func IsCompatible(a, b PinType) bool {
	if a == b || a == PinAny || b == PinAny {
		return true
	}
	return bothIn(a, b, PinInt, PinFloat) || bothIn(a, b, PinString, PinPath)
}

func bothIn(a, b, x, y PinType) bool {
	return (a == x || a == y) && (b == x || b == y)
}

// Direction says whether a pin consumes or supplies a value.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// MarshalText encodes the direction by its upper-case name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(strings.ToUpper(d.String())), nil
}

// UnmarshalText accepts "input"/"output" in any case.
func (d *Direction) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "input":
		*d = Input
	case "output":
		*d = Output
	default:
		return errors.InvalidInput("direction", fmt.Sprintf("unknown pin direction %q", string(b)))
	}
	return nil
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Output {
		return Input
	}
	return Output
}
