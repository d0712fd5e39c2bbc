package nodes

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/kbukum/pixelflow/cache"
	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
)

// LoadImage reads an image file. Transparent areas are flattened onto white.
type LoadImage struct {
	imageNode
	images *cache.Images
}

// NewLoadImage creates a LoadImageNode.
func NewLoadImage(deps Deps) *LoadImage {
	n := &LoadImage{images: deps.Images}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "Load Image",
		Description: "Load an image from a file path",
		Category:    CategoryIO,
		ClassName:   "LoadImageNode",
	}, func(s *dag.PinSet) {
		s.Input("path", dag.PinPath, dag.WithDefault(""), dag.WithDescription("File path to image"))
		imageOut(s, "Loaded image")
		s.Output("width", dag.PinInt, dag.WithDescription("Image width"))
		s.Output("height", dag.PinInt, dag.WithDescription("Image height"))
		s.Output("filename", dag.PinString, dag.WithDescription("Filename without path"))
	}, nil)
	n.process = n.load
	return n
}

func (n *LoadImage) load(_ context.Context, ec *dag.ExecutionContext) error {
	raw, err := n.InputString("path")
	if err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		n.log.Warn("no file path provided", n.fields())
		resetOutputs(n.NodeBase)
		return nil
	}
	path, err := resolvePath(raw, "", ec)
	if err != nil {
		return err
	}

	var img image.Image
	if n.images != nil {
		img, err = n.images.Load(path)
	} else {
		img, err = imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			err = errors.ImageIO(path, err)
		}
	}
	if err != nil {
		return err
	}

	out := flatten(img)
	n.log.Info("image loaded", n.fields("path", path, "width", out.Bounds().Dx(), "height", out.Bounds().Dy()))
	return setOutputs(n.NodeBase, map[string]any{
		pinImage:   out,
		"width":    out.Bounds().Dx(),
		"height":   out.Bounds().Dy(),
		"filename": filepath.Base(path),
	})
}

// SaveImage writes an image file, creating parent directories. The format
// input wins over the file extension; JPEG quality is clamped to 1-100.
type SaveImage struct {
	imageNode
	outputDir string
}

// NewSaveImage creates a SaveImageNode.
func NewSaveImage(deps Deps) *SaveImage {
	n := &SaveImage{outputDir: deps.OutputDir}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "Save Image",
		Description: "Save an image to a file path",
		Category:    CategoryIO,
		ClassName:   "SaveImageNode",
	}, func(s *dag.PinSet) {
		imageIn(s, "Image to save")
		s.Input("path", dag.PinPath, dag.WithDefault("output.png"), dag.WithDescription("File path to save to"))
		s.Input("quality", dag.PinInt, dag.WithDefault(95), dag.WithDescription("JPEG quality (1-100)"))
		s.Input("format", dag.PinString, dag.WithDefault(""), dag.WithDescription("Image format (PNG, JPEG, ...); empty uses the extension"))
		s.Output("success", dag.PinBool, dag.WithDefault(false), dag.WithDescription("True if saved successfully"))
		s.Output("saved_path", dag.PinString, dag.WithDefault(""), dag.WithDescription("Actual path where file was saved"))
	}, nil)
	n.process = n.save
	return n
}

func (n *SaveImage) save(ctx context.Context, ec *dag.ExecutionContext) error {
	img, err := n.optionalImage(pinImage)
	if err != nil {
		return err
	}
	raw, err := n.InputString("path")
	if err != nil {
		return err
	}
	raw = strings.TrimSpace(raw)
	if img == nil || raw == "" {
		if raw == "" {
			n.log.Warn("no file path provided", n.fields())
		}
		return n.SetOutput("success", false)
	}

	quality, err := n.InputInt("quality")
	if err != nil {
		return err
	}
	format, err := n.InputString("format")
	if err != nil {
		return err
	}

	path, err := resolvePath(raw, n.outputDir, ec)
	if err != nil {
		_ = setOutputs(n.NodeBase, map[string]any{"success": false, "saved_path": ""})
		return err
	}

	if err := checkpoint(ctx, ec); err != nil {
		return err
	}
	if err := writeImage(img, path, format, clampInt(quality, 1, 100)); err != nil {
		_ = setOutputs(n.NodeBase, map[string]any{"success": false, "saved_path": ""})
		return err
	}
	n.log.Info("image saved", n.fields("path", path))
	return setOutputs(n.NodeBase, map[string]any{"success": true, "saved_path": path})
}

func writeImage(img image.Image, path, format string, quality int) error {
	f, err := saveFormat(format, path)
	if err != nil {
		return errors.ImageIO(path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.ImageIO(path, err)
	}
	if f == imaging.JPEG {
		img = flatten(img)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.ImageIO(path, err)
	}
	if err := imaging.Encode(file, img, f, imaging.JPEGQuality(quality)); err != nil {
		_ = file.Close()
		return errors.ImageIO(path, err)
	}
	if err := file.Close(); err != nil {
		return errors.ImageIO(path, err)
	}
	return nil
}

// saveFormat picks the encoder from format, then from the extension, then
// falls back to PNG.
func saveFormat(format, path string) (imaging.Format, error) {
	if f := strings.ToLower(strings.TrimSpace(format)); f != "" {
		out, err := imaging.FormatFromExtension(f)
		if err != nil {
			return 0, fmt.Errorf("unsupported format %q", format)
		}
		return out, nil
	}
	if out, err := imaging.FormatFromFilename(path); err == nil {
		return out, nil
	}
	return imaging.PNG, nil
}

// ImageInfo reports an image's dimensions and color model.
type ImageInfo struct {
	imageNode
}

// NewImageInfo creates an ImageInfoNode.
func NewImageInfo(deps Deps) *ImageInfo {
	n := &ImageInfo{}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "Image Info",
		Description: "Get information about an image",
		Category:    CategoryIO,
		ClassName:   "ImageInfoNode",
	}, func(s *dag.PinSet) {
		imageIn(s, "Input image")
		s.Output("width", dag.PinInt, dag.WithDescription("Image width"))
		s.Output("height", dag.PinInt, dag.WithDescription("Image height"))
		s.Output("mode", dag.PinString, dag.WithDescription("Color mode (RGB, RGBA, etc.)"))
		s.Output("channels", dag.PinInt, dag.WithDescription("Number of color channels"))
		s.Output("aspect_ratio", dag.PinFloat, dag.WithDescription("Width/Height ratio"))
	}, nil)
	n.process = n.inspect
	return n
}

func (n *ImageInfo) inspect(context.Context, *dag.ExecutionContext) error {
	img, err := n.optionalImage(pinImage)
	if err != nil {
		return err
	}
	if img == nil {
		resetOutputs(n.NodeBase)
		return nil
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	mode, channels := colorMode(img)
	ratio := 0.0
	if h > 0 {
		ratio = float64(w) / float64(h)
	}
	return setOutputs(n.NodeBase, map[string]any{
		"width":        w,
		"height":       h,
		"mode":         mode,
		"channels":     channels,
		"aspect_ratio": ratio,
	})
}

func colorMode(img image.Image) (string, int) {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L", 1
	case *image.Alpha, *image.Alpha16:
		return "A", 1
	case *image.Paletted:
		return "P", 1
	case *image.YCbCr:
		return "RGB", 3
	case *image.CMYK:
		return "CMYK", 4
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return "RGB", 3
	}
	return "RGBA", 4
}

// PreviewSize bounds the longest side of the image retained by ImagePreview.
const PreviewSize = 256

// ImagePreview passes its input through and keeps a downscaled copy for
// display.
type ImagePreview struct {
	imageNode
	mu      sync.RWMutex
	preview image.Image
}

// NewImagePreview creates an ImagePreviewNode.
func NewImagePreview(deps Deps) *ImagePreview {
	n := &ImagePreview{}
	n.imageNode = newImageNode(deps, dag.Info{
		Name:        "Image Preview",
		Description: "Display an image preview directly in the node",
		Category:    CategoryIO,
		ClassName:   "ImagePreviewNode",
	}, func(s *dag.PinSet) {
		imageIn(s, "Image to preview")
		imageOut(s, "Passthrough image")
	}, nil)
	n.process = n.capture
	return n
}

func (n *ImagePreview) capture(context.Context, *dag.ExecutionContext) error {
	img, err := n.optionalImage(pinImage)
	if err != nil {
		return err
	}
	var preview image.Image
	if img != nil {
		preview = imaging.Fit(img, PreviewSize, PreviewSize, imaging.Box)
	}
	n.mu.Lock()
	n.preview = preview
	n.mu.Unlock()
	return n.SetOutput(pinImage, img)
}

// Preview returns the retained preview, or nil before the first run.
func (n *ImagePreview) Preview() image.Image {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.preview
}

// resetOutputs drops values left over from a previous run.
func resetOutputs(b *dag.NodeBase) {
	for _, p := range b.OutputPins() {
		p.Reset()
	}
}

func setOutputs(b *dag.NodeBase, values map[string]any) error {
	for name, v := range values {
		if err := b.SetOutput(name, v); err != nil {
			return err
		}
	}
	return nil
}
