package nodes

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/pixelflow/cache"
	"github.com/kbukum/pixelflow/dag"
	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

func testDeps() Deps {
	return Deps{Log: logger.Nop()}
}

func setInput(t *testing.T, n dag.Node, pin string, v any) {
	t.Helper()
	p := n.Base().InputPin(pin)
	require.NotNil(t, p, "input %q", pin)
	require.NoError(t, p.SetDefault(v))
}

func output(t *testing.T, n dag.Node, pin string) any {
	t.Helper()
	p := n.Base().OutputPin(pin)
	require.NotNil(t, p, "output %q", pin)
	v, err := p.Value()
	require.NoError(t, err)
	return v
}

func outputImage(t *testing.T, n dag.Node) *image.NRGBA {
	t.Helper()
	img, ok := output(t, n, pinImage).(image.Image)
	require.True(t, ok, "expected an image output")
	return imaging.Clone(img)
}

func run(t *testing.T, n dag.Node) {
	t.Helper()
	require.NoError(t, dag.ExecuteSafe(context.Background(), n, dag.NewExecutionContext()))
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

func TestRegisterAllKinds(t *testing.T) {
	reg, err := NewRegistry(testDeps())
	require.NoError(t, err)

	assert.Len(t, reg.ClassNames(), 18)
	assert.Equal(t, []string{
		CategoryColor, CategoryFilter, CategoryGenerator, CategoryIO, CategoryTransform, CategoryVariables,
	}, reg.Categories())

	for _, class := range reg.ClassNames() {
		n, err := reg.Create(class)
		require.NoError(t, err)
		assert.Equal(t, class, n.Base().ClassName())
	}

	meta, ok := reg.Get("BlurNode")
	require.True(t, ok)
	assert.Equal(t, "exec", meta.Inputs[0].Name)
	assert.Equal(t, dag.PinExec, meta.Inputs[0].Type)

	assertErr := Register(reg, testDeps())
	assert.True(t, errors.HasCode(assertErr, errors.ErrCodeAlreadyExists))
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	deps := Deps{Images: cache.NewImages(cache.Config{}), Log: logger.Nop()}
	reg, err := NewRegistry(deps)
	require.NoError(t, err)

	create := func(class string) dag.Node {
		n, err := reg.Create(class)
		require.NoError(t, err)
		return n
	}
	g := dag.NewGraph(dag.WithLogger(logger.Nop()))
	gen, blur, resize, save := create("SolidColorNode"), create("BlurNode"), create("ResizeNode"), create("SaveImageNode")
	load, info := create("LoadImageNode"), create("ImageInfoNode")
	for _, n := range []dag.Node{info, load, save, resize, blur, gen} {
		require.NoError(t, g.AddNode(n))
	}
	connect := func(out dag.Node, outPin string, in dag.Node, inPin string) {
		_, err := g.ConnectByName(out, outPin, in, inPin)
		require.NoError(t, err)
	}
	connect(gen, "image", blur, "image")
	connect(blur, "image", resize, "image")
	connect(resize, "image", save, "image")
	connect(save, "saved_path", load, "path")
	connect(load, "image", info, "image")

	setInput(t, gen, "width", 8)
	setInput(t, gen, "height", 4)
	setInput(t, gen, "red", 10)
	setInput(t, resize, "width", 4)
	setInput(t, resize, "height", 2)
	setInput(t, save, "path", filepath.Join(dir, "out", "result.png"))

	res, err := g.ExecuteAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, dag.StatusCompleted, res.Status)

	assert.Equal(t, true, output(t, save, "success"))
	assert.FileExists(t, filepath.Join(dir, "out", "result.png"))
	assert.Equal(t, 4, output(t, info, "width"))
	assert.Equal(t, 2, output(t, info, "height"))
	assert.Equal(t, "RGB", output(t, info, "mode"))
	assert.Equal(t, 3, output(t, info, "channels"))
	assert.Equal(t, 2.0, output(t, info, "aspect_ratio"))
	assert.Equal(t, "result.png", output(t, load, "filename"))
	assert.Equal(t, true, output(t, info, "exec"))
}

func TestMissingImageIsSkipped(t *testing.T) {
	stale := solid(2, 2, color.NRGBA{R: 255, A: 255})
	for _, n := range []dag.Node{NewBlur(testDeps()), NewImageInfo(testDeps()), NewImagePreview(testDeps())} {
		if n.Base().OutputPin(pinImage) != nil {
			require.NoError(t, n.Base().SetOutput(pinImage, stale))
		}
		run(t, n)
		if out := n.Base().OutputPin(pinImage); out != nil {
			v, _ := out.Value()
			assert.Nil(t, v, "%s should produce nothing", n.Base().ClassName())
		}
		assert.Equal(t, true, output(t, n, pinExec))
	}

	info := NewImageInfo(testDeps())
	setInput(t, info, pinImage, stale)
	run(t, info)
	assert.Equal(t, 2, output(t, info, "width"))
	setInput(t, info, pinImage, nil)
	run(t, info)
	assert.Nil(t, output(t, info, "width"), "width from the previous run is dropped")

	save := NewSaveImage(testDeps())
	run(t, save)
	assert.Equal(t, false, output(t, save, "success"))
}

func TestNonImageInputFails(t *testing.T) {
	blur := NewBlur(testDeps())
	setInput(t, blur, pinImage, "not an image")
	err := dag.ExecuteSafe(context.Background(), blur, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNodeExecution), "got %v", err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)
}

func TestParameterClamping(t *testing.T) {
	gen := NewSolidColor(testDeps())
	setInput(t, gen, "width", 0)
	setInput(t, gen, "height", -5)
	setInput(t, gen, "red", 300)
	setInput(t, gen, "green", -1)
	setInput(t, gen, "blue", 128)
	run(t, gen)

	img := outputImage(t, gen)
	assert.Equal(t, image.Rect(0, 0, 1, 1), img.Bounds())
	assert.Equal(t, color.NRGBA{R: 255, G: 0, B: 128, A: 255}, img.NRGBAAt(0, 0))

	blur := NewBlur(testDeps())
	setInput(t, blur, pinImage, solid(3, 3, color.NRGBA{A: 255}))
	setInput(t, blur, "radius", 1000.0)
	run(t, blur)
	assert.Equal(t, 3, outputImage(t, blur).Bounds().Dx())
}

func TestFlip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{B: 255, A: 255})

	flip := NewFlip(testDeps())
	setInput(t, flip, pinImage, src)
	setInput(t, flip, "horizontal", true)
	run(t, flip)
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, outputImage(t, flip).NRGBAAt(0, 0))
}

func TestRotateGrowsCanvas(t *testing.T) {
	rot := NewRotate(testDeps())
	setInput(t, rot, pinImage, solid(4, 2, color.NRGBA{A: 255}))
	setInput(t, rot, "angle", 90.0)
	run(t, rot)
	assert.Equal(t, image.Rect(0, 0, 2, 4), outputImage(t, rot).Bounds())
}

func TestColorAdjustments(t *testing.T) {
	gray := solid(2, 2, color.NRGBA{R: 100, G: 100, B: 100, A: 255})

	bc := NewBrightnessContrast(testDeps())
	setInput(t, bc, pinImage, gray)
	setInput(t, bc, "brightness", 2.0)
	run(t, bc)
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 255}, outputImage(t, bc).NRGBAAt(1, 1))

	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	flat := NewBrightnessContrast(testDeps())
	setInput(t, flat, pinImage, src)
	setInput(t, flat, "contrast", 0.0)
	run(t, flat)
	out := outputImage(t, flat)
	assert.Equal(t, out.NRGBAAt(0, 0), out.NRGBAAt(1, 0), "zero contrast collapses to the mean")
	assert.Equal(t, uint8(100), out.NRGBAAt(0, 0).R)

	hsv := NewHSVAdjust(testDeps())
	setInput(t, hsv, pinImage, solid(1, 1, color.NRGBA{R: 255, A: 255}))
	setInput(t, hsv, "saturation", 0.0)
	run(t, hsv)
	px := outputImage(t, hsv).NRGBAAt(0, 0)
	assert.Equal(t, px.R, px.G)
	assert.Equal(t, px.G, px.B)
	assert.Equal(t, uint8(76), px.R)
}

func TestNoiseIsDeterministic(t *testing.T) {
	gen := func(seed int) *image.NRGBA {
		n := NewNoise(testDeps())
		setInput(t, n, "width", 16)
		setInput(t, n, "height", 8)
		setInput(t, n, "seed", seed)
		run(t, n)
		return outputImage(t, n)
	}
	assert.Equal(t, gen(1).Pix, gen(1).Pix)
	assert.NotEqual(t, gen(1).Pix, gen(2).Pix)
}

func TestImageNodesObserveCancellation(t *testing.T) {
	n := NewNoise(testDeps())
	ec := dag.NewExecutionContext()
	ec.Cancel()
	err := n.Execute(context.Background(), ec)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewSolidColor(testDeps()).Execute(ctx, dag.NewExecutionContext())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))

	save := NewSaveImage(Deps{OutputDir: dir, Log: logger.Nop()})
	setInput(t, save, pinImage, img)
	setInput(t, save, "path", "nested/photo.jpg")
	setInput(t, save, "quality", 500)
	run(t, save)

	want := filepath.Join(dir, "nested", "photo.jpg")
	assert.Equal(t, want, output(t, save, "saved_path"))
	decoded, err := imaging.Open(want)
	require.NoError(t, err)
	// Transparent pixels are flattened onto white for JPEG.
	r, g, b, _ := decoded.At(1, 1).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))

	bad := NewSaveImage(testDeps())
	setInput(t, bad, pinImage, img)
	setInput(t, bad, "path", filepath.Join(dir, "x.out"))
	setInput(t, bad, "format", "HEIC")
	err = dag.ExecuteSafe(context.Background(), bad, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeImageIO), "got %v", err)
	assert.Equal(t, false, output(t, bad, "success"))
}

func TestSaveFormat(t *testing.T) {
	tests := []struct {
		format, path string
		want         imaging.Format
	}{
		{"", "a.png", imaging.PNG},
		{"", "a.JPG", imaging.JPEG},
		{"", "a.tif", imaging.TIFF},
		{"", "a.unknown", imaging.PNG},
		{"JPEG", "a.png", imaging.JPEG},
		{" bmp ", "a.png", imaging.BMP},
	}
	for _, tt := range tests {
		t.Run(tt.format+"|"+tt.path, func(t *testing.T) {
			got, err := saveFormat(tt.format, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := saveFormat("heic", "a.png")
	assert.Error(t, err)
}

func TestLoadImageResolvesBaseDir(t *testing.T) {
	dir := t.TempDir()
	src := solid(5, 3, color.NRGBA{G: 255, A: 128})
	require.NoError(t, imaging.Save(src, filepath.Join(dir, "in.png")))

	load := NewLoadImage(testDeps())
	setInput(t, load, "path", "in.png")
	ec := dag.NewExecutionContext()
	ec.Set(MetaBaseDir, dir)
	require.NoError(t, dag.ExecuteSafe(context.Background(), load, ec))

	img := outputImage(t, load)
	assert.Equal(t, 5, output(t, load, "width"))
	assert.Equal(t, uint8(255), img.NRGBAAt(0, 0).A, "alpha is flattened")

	missing := NewLoadImage(testDeps())
	setInput(t, missing, "path", filepath.Join(dir, "nope.png"))
	err := dag.ExecuteSafe(context.Background(), missing, nil)
	assert.True(t, errors.HasCode(err, errors.ErrCodeImageIO), "got %v", err)

	empty := NewLoadImage(testDeps())
	run(t, empty)
	assert.Nil(t, output(t, empty, pinImage))
}

func TestImagePreview(t *testing.T) {
	big := solid(1024, 512, color.NRGBA{B: 255, A: 255})
	p := NewImagePreview(testDeps())
	assert.Nil(t, p.Preview())

	setInput(t, p, pinImage, big)
	run(t, p)
	assert.Same(t, big, output(t, p, pinImage), "input passes through unchanged")
	assert.Equal(t, image.Rect(0, 0, PreviewSize, PreviewSize/2), p.Preview().Bounds())
}

func TestVariables(t *testing.T) {
	f := NewFloatVariable()
	assert.Equal(t, 0.0, f.Value())
	require.NoError(t, f.Set("2.5"))
	assert.Equal(t, 2.5, f.Value())

	i := NewIntegerVariable()
	require.NoError(t, i.Set(7.0))
	assert.Equal(t, 7, i.Value())
	assert.True(t, errors.HasCode(i.Set("seven"), errors.ErrCodeInvalidInput))

	p := NewPathVariable()
	require.NoError(t, p.Set("/tmp/in.png"))
	assert.Equal(t, "path", p.Pin().Name())

	// A loaded document may carry a float for an int pin.
	require.NoError(t, i.Pin().SetValue(3.0))
	run(t, i)
	assert.Equal(t, 3, i.Value())

	g := dag.NewGraph(dag.WithLogger(logger.Nop()))
	blur := NewBlur(testDeps())
	require.NoError(t, g.AddNode(f))
	require.NoError(t, g.AddNode(blur))
	_, err := g.ConnectByName(f, "value", blur, "radius")
	require.NoError(t, err)
	radius, err := blur.InputFloat("radius")
	require.NoError(t, err)
	assert.Equal(t, 2.5, radius)
}

func TestConfinedPaths(t *testing.T) {
	root := t.TempDir()
	outDir := filepath.Join(root, "out")
	img := solid(2, 2, color.NRGBA{R: 255, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(root, "in.png")))

	confinedRun := func() *dag.ExecutionContext {
		ec := dag.NewExecutionContext()
		ec.Set(MetaBaseDir, root)
		ec.Set(MetaConfinePaths, true)
		return ec
	}

	for _, path := range []string{"../escaped.png", filepath.Join(root, "escaped.png"), "a/../../escaped.png"} {
		t.Run("save "+path, func(t *testing.T) {
			save := NewSaveImage(Deps{OutputDir: outDir, Log: logger.Nop()})
			setInput(t, save, pinImage, img)
			setInput(t, save, "path", path)
			err := dag.ExecuteSafe(context.Background(), save, confinedRun())
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)
			assert.Equal(t, false, output(t, save, "success"))
			assert.NoFileExists(t, filepath.Join(root, "escaped.png"))
		})
	}

	save := NewSaveImage(Deps{OutputDir: outDir, Log: logger.Nop()})
	setInput(t, save, pinImage, img)
	setInput(t, save, "path", "nested/ok.png")
	require.NoError(t, dag.ExecuteSafe(context.Background(), save, confinedRun()))
	assert.FileExists(t, filepath.Join(outDir, "nested", "ok.png"))

	escape := NewLoadImage(testDeps())
	setInput(t, escape, "path", "../in.png")
	err := dag.ExecuteSafe(context.Background(), escape, confinedRun())
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)

	load := NewLoadImage(testDeps())
	setInput(t, load, "path", "in.png")
	require.NoError(t, dag.ExecuteSafe(context.Background(), load, confinedRun()))
	assert.Equal(t, 2, output(t, load, "width"))

	// Without confinement absolute paths anywhere are accepted.
	free := NewSaveImage(Deps{OutputDir: outDir, Log: logger.Nop()})
	setInput(t, free, pinImage, img)
	setInput(t, free, "path", filepath.Join(root, "elsewhere.png"))
	run(t, free)
	assert.FileExists(t, filepath.Join(root, "elsewhere.png"))
}

func TestWithin(t *testing.T) {
	tests := []struct {
		root, path string
		want       bool
	}{
		{"/data", "/data", true},
		{"/data", "/data/a/b.png", true},
		{"/data", "/data/../etc/passwd", false},
		{"/data", "/database/x.png", false},
		{"/data", "/other/x.png", false},
		{"/data", "/data/..x.png", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, within(tt.root, tt.path))
		})
	}
}
