package nodes

import (
	"context"
	"image"

	"github.com/disintegration/imaging"

	"github.com/kbukum/pixelflow/dag"
)

// Blur applies a Gaussian blur. Radius is clamped to 0-50.
type Blur struct {
	imageNode
}

// NewBlur creates a BlurNode.
func NewBlur(deps Deps) *Blur {
	n := &Blur{}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "Blur",
		Description: "Apply Gaussian blur to an image",
		Category:    CategoryFilter,
		ClassName:   "BlurNode",
	}, func(s *dag.PinSet) {
		imageIn(s, "Input image")
		imageOut(s, "Filtered image")
		s.Input("radius", dag.PinFloat, dag.WithDefault(2.0), dag.WithDescription("Blur radius"))
	}, nil)
	n.process = n.blur
	return n
}

func (n *Blur) blur(ctx context.Context, ec *dag.ExecutionContext) error {
	radius, err := n.InputFloat("radius")
	if err != nil {
		return err
	}
	radius = clampFloat(radius, 0, 50)
	return n.apply(ctx, ec, func(img image.Image) (image.Image, error) {
		return imaging.Blur(img, radius), nil
	})
}

// Sharpen sharpens an image. Strength is clamped to 0-5; below 1 the result
// is blended with the original, above 1 the sharpening is stronger.
type Sharpen struct {
	imageNode
}

// NewSharpen creates a SharpenNode.
func NewSharpen(deps Deps) *Sharpen {
	n := &Sharpen{}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "Sharpen",
		Description: "Sharpen an image",
		Category:    CategoryFilter,
		ClassName:   "SharpenNode",
	}, func(s *dag.PinSet) {
		imageIn(s, "Input image")
		imageOut(s, "Filtered image")
		s.Input("strength", dag.PinFloat, dag.WithDefault(1.0), dag.WithDescription("Sharpen strength"))
	}, nil)
	n.process = n.sharpen
	return n
}

func (n *Sharpen) sharpen(ctx context.Context, ec *dag.ExecutionContext) error {
	strength, err := n.InputFloat("strength")
	if err != nil {
		return err
	}
	strength = clampFloat(strength, 0, 5)
	return n.apply(ctx, ec, func(img image.Image) (image.Image, error) {
		switch {
		case strength == 0:
			return img, nil
		case strength < 1:
			sharp := imaging.Sharpen(img, 1)
			return imaging.Overlay(imaging.Clone(img), sharp, image.Pt(0, 0), strength), nil
		default:
			return imaging.Sharpen(img, strength), nil
		}
	})
}
