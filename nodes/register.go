package nodes

import (
	"github.com/kbukum/pixelflow/dag"
)

// Factories returns a factory for every built-in kind, bound to deps.
func Factories(deps Deps) []dag.Factory {
	deps = deps.withDefaults()
	return []dag.Factory{
		func() dag.Node { return NewLoadImage(deps) },
		func() dag.Node { return NewSaveImage(deps) },
		func() dag.Node { return NewImageInfo(deps) },
		func() dag.Node { return NewImagePreview(deps) },
		func() dag.Node { return NewBlur(deps) },
		func() dag.Node { return NewSharpen(deps) },
		func() dag.Node { return NewResize(deps) },
		func() dag.Node { return NewRotate(deps) },
		func() dag.Node { return NewFlip(deps) },
		func() dag.Node { return NewBrightnessContrast(deps) },
		func() dag.Node { return NewHSVAdjust(deps) },
		func() dag.Node { return NewSolidColor(deps) },
		func() dag.Node { return NewNoise(deps) },
		func() dag.Node { return NewFloatVariable() },
		func() dag.Node { return NewIntegerVariable() },
		func() dag.Node { return NewBooleanVariable() },
		func() dag.Node { return NewStringVariable() },
		func() dag.Node { return NewPathVariable() },
	}
}

// Register adds every built-in kind to reg.
func Register(reg *dag.Registry, deps Deps) error {
	for _, f := range Factories(deps) {
		if err := reg.Register(f); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry(deps Deps) (*dag.Registry, error) {
	reg := dag.NewRegistry()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	return reg, nil
}
