package dag

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/kbukum/pixelflow/errors"
)

// CoerceValue converts v, typically decoded from JSON or YAML, to the Go
// representation used for pins of type t:
//
//	bool, int, float, string/path  bool, int, float64, string
//	color                          []int{r, g, b, a}, from [r g b], [r g b a] or "#rrggbb[aa]"
//	vector2, vector3               []float64 of length 2 or 3
//	matrix                         [][]float64
//	array, dict                    []any, map[string]any
//	image, exec                    always nil
//	any                            v unchanged
//
// A nil v stays nil.
func CoerceValue(v any, t PinType) (any, error) {
	if v == nil || t == PinImage || t == PinExec {
		return nil, nil
	}
	var (
		out any
		err error
	)
	switch t {
	case PinBool:
		out, err = cast.ToBoolE(v)
	case PinInt:
		out, err = cast.ToIntE(v)
	case PinFloat:
		out, err = cast.ToFloat64E(v)
	case PinString, PinPath:
		out, err = cast.ToStringE(v)
	case PinColor:
		out, err = toColor(v)
	case PinVector2:
		out, err = toFloats(v, 2)
	case PinVector3:
		out, err = toFloats(v, 3)
	case PinMatrix:
		out, err = toMatrix(v)
	case PinArray:
		items, ok := sliceOf(v)
		if !ok {
			err = fmt.Errorf("%T is not a list", v)
		}
		out = items
	case PinDict:
		out, err = cast.ToStringMapE(v)
	default:
		out = v
	}
	if err != nil {
		return nil, errors.InvalidInput("value", fmt.Sprintf("cannot use %v as %s: %v", v, t.Name(), err))
	}
	return out, nil
}

func sliceOf(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// toFloats converts a list to []float64; n < 0 accepts any length.
func toFloats(v any, n int) ([]float64, error) {
	items, ok := sliceOf(v)
	if !ok {
		return nil, fmt.Errorf("%T is not a list", v)
	}
	if n >= 0 && len(items) != n {
		return nil, fmt.Errorf("expected %d components, got %d", n, len(items))
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, err := cast.ToFloat64E(item)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func toMatrix(v any) ([][]float64, error) {
	rows, ok := sliceOf(v)
	if !ok {
		return nil, fmt.Errorf("%T is not a list of rows", v)
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		r, err := toFloats(row, -1)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}

func toColor(v any) ([]int, error) {
	switch c := v.(type) {
	case string:
		return parseHexColor(c)
	case color.Color:
		n := color.NRGBAModel.Convert(c).(color.NRGBA)
		return []int{int(n.R), int(n.G), int(n.B), int(n.A)}, nil
	}
	items, ok := sliceOf(v)
	if !ok || (len(items) != 3 && len(items) != 4) {
		return nil, fmt.Errorf("expected 3 or 4 color components")
	}
	out := []int{0, 0, 0, 255}
	for i, item := range items {
		n, err := cast.ToIntE(item)
		if err != nil {
			return nil, err
		}
		out[i] = clampInt(n, 0, 255)
	}
	return out, nil
}

func parseHexColor(s string) ([]int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return nil, fmt.Errorf("expected #rrggbb or #rrggbbaa, got %q", s)
	}
	out := []int{0, 0, 0, 255}
	for i := 0; i < len(s)/2; i++ {
		n, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = int(n)
	}
	return out, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// portable returns v when it can be written to a project document, nil
// otherwise. Images and execution markers are never persisted.
func portable(v any, t PinType) any {
	if v == nil || t == PinImage || t == PinExec {
		return nil
	}
	if _, ok := v.(image.Image); ok {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return nil
	}
	return v
}

// InputValue resolves the named input pin's value.
func (b *NodeBase) InputValue(name string) (any, error) {
	p := b.InputPin(name)
	if p == nil {
		return nil, errors.NotFound("input pin", b.Name()+"."+name)
	}
	return p.Value()
}

// SetOutput writes the named output pin's value.
func (b *NodeBase) SetOutput(name string, v any) error {
	p := b.OutputPin(name)
	if p == nil {
		return errors.NotFound("output pin", b.Name()+"."+name)
	}
	return p.SetValue(v)
}

func inputAs[T any](b *NodeBase, name string, conv func(any) (T, error)) (T, error) {
	var zero T
	v, err := b.InputValue(name)
	if err != nil {
		return zero, err
	}
	out, err := conv(v)
	if err != nil {
		return zero, errors.InvalidInput(name, fmt.Sprintf("input %q: %v", name, err))
	}
	return out, nil
}

// InputFloat reads the named input as a float64.
func (b *NodeBase) InputFloat(name string) (float64, error) {
	return inputAs(b, name, cast.ToFloat64E)
}

// InputInt reads the named input as an int.
func (b *NodeBase) InputInt(name string) (int, error) {
	return inputAs(b, name, cast.ToIntE)
}

// InputBool reads the named input as a bool.
func (b *NodeBase) InputBool(name string) (bool, error) {
	return inputAs(b, name, cast.ToBoolE)
}

// InputString reads the named input as a string.
func (b *NodeBase) InputString(name string) (string, error) {
	return inputAs(b, name, cast.ToStringE)
}

// InputColor reads the named input as an NRGBA color.
func (b *NodeBase) InputColor(name string) (color.NRGBA, error) {
	return inputAs(b, name, func(v any) (color.NRGBA, error) {
		c, err := toColor(v)
		if err != nil {
			return color.NRGBA{}, err
		}
		return color.NRGBA{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2]), A: uint8(c[3])}, nil
	})
}

// InputImage reads the named input as an image. A missing image is an error.
func (b *NodeBase) InputImage(name string) (image.Image, error) {
	return inputAs(b, name, func(v any) (image.Image, error) {
		img, ok := v.(image.Image)
		if !ok || img == nil {
			return nil, fmt.Errorf("no image available")
		}
		return img, nil
	})
}
