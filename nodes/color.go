package nodes

import (
	"context"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/kbukum/pixelflow/dag"
)

// BrightnessContrast scales brightness and then contrast by factors clamped
// to 0-3. A factor of 1 leaves the image unchanged; contrast pivots on the
// mean gray level.
type BrightnessContrast struct {
	imageNode
}

// NewBrightnessContrast creates a BrightnessContrastNode.
func NewBrightnessContrast(deps Deps) *BrightnessContrast {
	n := &BrightnessContrast{}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "Brightness/Contrast",
		Description: "Adjust brightness and contrast",
		Category:    CategoryColor,
		ClassName:   "BrightnessContrastNode",
	}, func(s *dag.PinSet) {
		imageIn(s, "Input image")
		imageOut(s, "Color-adjusted image")
		s.Input("brightness", dag.PinFloat, dag.WithDefault(1.0), dag.WithDescription("Brightness factor"))
		s.Input("contrast", dag.PinFloat, dag.WithDefault(1.0), dag.WithDescription("Contrast factor"))
	}, nil)
	n.process = n.adjust
	return n
}

func (n *BrightnessContrast) adjust(ctx context.Context, ec *dag.ExecutionContext) error {
	brightness, err := n.InputFloat("brightness")
	if err != nil {
		return err
	}
	contrast, err := n.InputFloat("contrast")
	if err != nil {
		return err
	}
	brightness, contrast = clampFloat(brightness, 0, 3), clampFloat(contrast, 0, 3)

	return n.apply(ctx, ec, func(img image.Image) (image.Image, error) {
		out := img
		if brightness != 1 {
			out = imaging.AdjustFunc(out, func(c color.NRGBA) color.NRGBA {
				return color.NRGBA{
					R: clampByte(float64(c.R) * brightness),
					G: clampByte(float64(c.G) * brightness),
					B: clampByte(float64(c.B) * brightness),
					A: c.A,
				}
			})
		}
		if contrast != 1 {
			mean := meanGray(out)
			out = imaging.AdjustFunc(out, func(c color.NRGBA) color.NRGBA {
				return color.NRGBA{
					R: clampByte(mean + (float64(c.R)-mean)*contrast),
					G: clampByte(mean + (float64(c.G)-mean)*contrast),
					B: clampByte(mean + (float64(c.B)-mean)*contrast),
					A: c.A,
				}
			})
		}
		return out, nil
	})
}

// HSVAdjust scales color saturation by a factor clamped to 0-3. Zero gives
// grayscale.
type HSVAdjust struct {
	imageNode
}

// NewHSVAdjust creates an HSVAdjustNode.
func NewHSVAdjust(deps Deps) *HSVAdjust {
	n := &HSVAdjust{}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "HSV Adjust",
		Description: "Adjust HSV values",
		Category:    CategoryColor,
		ClassName:   "HSVAdjustNode",
	}, func(s *dag.PinSet) {
		imageIn(s, "Input image")
		imageOut(s, "Color-adjusted image")
		s.Input("saturation", dag.PinFloat, dag.WithDefault(1.0), dag.WithDescription("Saturation factor"))
	}, nil)
	n.process = n.adjust
	return n
}

func (n *HSVAdjust) adjust(ctx context.Context, ec *dag.ExecutionContext) error {
	saturation, err := n.InputFloat("saturation")
	if err != nil {
		return err
	}
	saturation = clampFloat(saturation, 0, 3)

	return n.apply(ctx, ec, func(img image.Image) (image.Image, error) {
		if saturation == 1 {
			return img, nil
		}
		return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			l := luma(c)
			return color.NRGBA{
				R: clampByte(l + (float64(c.R)-l)*saturation),
				G: clampByte(l + (float64(c.G)-l)*saturation),
				B: clampByte(l + (float64(c.B)-l)*saturation),
				A: c.A,
			}
		}), nil
	})
}

func luma(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

// meanGray is the rounded average luma of img.
func meanGray(img image.Image) float64 {
	src := imaging.Clone(img)
	var sum float64
	count := 0
	for i := 0; i+3 < len(src.Pix); i += 4 {
		sum += luma(color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2]})
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(int(sum/float64(count) + 0.5))
}
