package nodes

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/kbukum/pixelflow/cache"
	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

// Node categories.
const (
	CategoryIO        = "Input/Output"
	CategoryFilter    = "Filter"
	CategoryTransform = "Transform"
	CategoryColor     = "Color"
	CategoryGenerator = "Generator"
	CategoryVariables = "Variables"
)

// ExecutionContext metadata keys read by the node library.
const (
	// MetaBaseDir is the directory relative image paths are resolved against.
	MetaBaseDir = "base_dir"
	// MetaConfinePaths, when true, rejects image paths outside MetaBaseDir
	// and, for SaveImageNode, outside Deps.OutputDir.
	MetaConfinePaths = "confine_paths"
)

const (
	pinExec  = "exec"
	pinImage = "image"
)

// Deps are the collaborators shared by the node library.
type Deps struct {
	// Images caches decoded files for LoadImageNode. Nil decodes every time.
	Images *cache.Images
	// OutputDir is prepended to relative SaveImageNode paths when set.
	OutputDir string
	Log       *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Get(logger.ComponentNodes)
	}
	return d
}

type processFunc func(ctx context.Context, ec *dag.ExecutionContext) error

// imageNode runs an image operation between the exec pins.
type imageNode struct {
	*dag.NodeBase
	log     *logger.Logger
	process processFunc
}

func newImageNode(deps Deps, info dag.Info, setup func(*dag.PinSet), process processFunc) imageNode {
	base := dag.NewNodeBase(info, func(s *dag.PinSet) {
		s.Input(pinExec, dag.PinExec, dag.WithDescription("Execute this node"))
		s.Output(pinExec, dag.PinExec, dag.WithDescription("Execution output"))
		if setup != nil {
			setup(s)
		}
	})
	return imageNode{NodeBase: base, log: deps.withDefaults().Log, process: process}
}

// Execute runs the node's operation and signals the exec output.
func (n *imageNode) Execute(ctx context.Context, ec *dag.ExecutionContext) error {
	if err := checkpoint(ctx, ec); err != nil {
		return err
	}
	if err := n.process(ctx, ec); err != nil {
		return err
	}
	return n.SetOutput(pinExec, true)
}

func (n *imageNode) fields(kv ...interface{}) map[string]interface{} {
	fields := logger.NodeFields(n.Name(), n.ID(), n.ClassName())
	for k, v := range logger.Fields(kv...) {
		fields[k] = v
	}
	return fields
}

// optionalImage returns the named image input, or nil when there is none.
func (n *imageNode) optionalImage(name string) (image.Image, error) {
	v, err := n.InputValue(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		n.log.Warn("no image provided", n.fields("pin", name))
		return nil, nil
	}
	img, ok := v.(image.Image)
	if !ok {
		return nil, errors.InvalidInput(name, fmt.Sprintf("input %q must be an image, got %T", name, v))
	}
	return img, nil
}

// apply reads the image input, runs fn on it and writes the image output.
func (n *imageNode) apply(ctx context.Context, ec *dag.ExecutionContext, fn func(image.Image) (image.Image, error)) error {
	img, err := n.optionalImage(pinImage)
	if err != nil {
		return err
	}
	if img == nil {
		return n.SetOutput(pinImage, nil)
	}
	out, err := fn(img)
	if err != nil {
		return err
	}
	if err := checkpoint(ctx, ec); err != nil {
		return err
	}
	return n.SetOutput(pinImage, out)
}

// checkpoint reports cancellation of the run as context.Canceled.
func checkpoint(ctx context.Context, ec *dag.ExecutionContext) error {
	if ec != nil && ec.IsCancelled() {
		return context.Canceled
	}
	return ctx.Err()
}

func imageIn(s *dag.PinSet, description string) {
	s.Input(pinImage, dag.PinImage, dag.WithDescription(description))
}

func imageOut(s *dag.PinSet, description string) {
	s.Output(pinImage, dag.PinImage, dag.WithDescription(description))
}

func metaString(ec *dag.ExecutionContext, key string) string {
	if ec == nil {
		return ""
	}
	v, _ := ec.Get(key)
	s, _ := v.(string)
	return s
}

func confined(ec *dag.ExecutionContext) bool {
	if ec == nil {
		return false
	}
	v, _ := ec.Get(MetaConfinePaths)
	b, _ := v.(bool)
	return b
}

// resolvePath joins a relative path onto root, or onto the run's
// MetaBaseDir when root is empty. In confined runs the result must stay
// inside that directory.
func resolvePath(raw, root string, ec *dag.ExecutionContext) (string, error) {
	if root == "" {
		root = metaString(ec, MetaBaseDir)
	}
	path := raw
	if root != "" && !filepath.IsAbs(raw) {
		path = filepath.Join(root, raw)
	}
	if !confined(ec) {
		return path, nil
	}
	if root == "" {
		root = "."
	}
	if !within(root, path) {
		return "", errors.InvalidInput("path", fmt.Sprintf("path %q is outside %s", raw, root))
	}
	return filepath.Clean(path), nil
}

// within reports whether path is root or lies below it, after cleaning.
// Symlinks are not followed.
func within(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// flatten composites img onto an opaque white background.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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

func clampByte(v float64) uint8 {
	return uint8(clampFloat(v+0.5, 0, 255))
}
