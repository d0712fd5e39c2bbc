package dag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/pixelflow/errors"
)

func TestRegistryCreate(t *testing.T) {
	reg := testRegistry(t)

	a, err := reg.Create("Scale")
	require.NoError(t, err)
	b, err := reg.Create("Scale")
	require.NoError(t, err)
	assert.NotSame(t, a.Base(), b.Base(), "each Create builds a fresh node")
	assert.NotEqual(t, a.Base().ID(), b.Base().ID())

	_, err = reg.Create("Teleport")
	assertCode(t, err, errors.ErrCodeUnknownNodeClass)
}

func TestRegistryRegisterErrors(t *testing.T) {
	reg := testRegistry(t)

	assertCode(t, reg.Register(sourceKind), errors.ErrCodeAlreadyExists)
	assertCode(t, reg.Register(nil), errors.ErrCodeInvalidInput)
	assertCode(t, reg.Register(func() Node { return nil }), errors.ErrCodeInvalidInput)
	assertCode(t, reg.Register(func() Node {
		return &probeNode{NodeBase: NewNodeBase(Info{Name: "Nameless"}, nil)}
	}), errors.ErrCodeInvalidInput)

	assert.Panics(t, func() { reg.MustRegister(scaleKind) })
}

func TestRegistryMetadata(t *testing.T) {
	reg := testRegistry(t)
	reg.MustRegister(func() Node {
		return &probeNode{NodeBase: NewNodeBase(Info{Name: "Alpha", ClassName: "Alpha", Category: "Filters"}, nil)}
	})

	meta, ok := reg.Get("Scale")
	require.True(t, ok)
	want := []PinSpec{
		{Name: "in", Type: PinFloat, Direction: Input},
		{Name: "factor", Type: PinFloat, Direction: Input, Default: 1.0},
		{Name: "tint", Type: PinColor, Direction: Input, Default: []int{0, 0, 0, 255}},
	}
	if diff := cmp.Diff(want, meta.Inputs); diff != "" {
		t.Errorf("inputs (-want +got):\n%s", diff)
	}
	assert.True(t, meta.Outputs[0].Multiple)

	var listed []string
	for _, m := range reg.List() {
		listed = append(listed, m.Category+"/"+m.Name)
	}
	if diff := cmp.Diff([]string{"Filters/Alpha", "Test/Scale", "Test/Source"}, listed); diff != "" {
		t.Errorf("List order (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"Alpha", "Scale", "Source"}, reg.ClassNames())
	assert.Equal(t, []string{"Filters", "Test"}, reg.Categories())

	_, ok = reg.Get("Teleport")
	assert.False(t, ok)
}
