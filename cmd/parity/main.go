// Command parity renders a directory of images through both backends
// and verifies the outputs agree within the per-channel tolerance. It is
// the offline counterpart of the renderer tests: run it against a real
// photo library whenever the shaders or the reference path change.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	photograph "github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/decode"
	"github.com/divanvisagie/Photograph/gpu"
	"github.com/divanvisagie/Photograph/transform"
)

// scenario pairs an edit state with the comparison rules it needs.
// Geometry states produce black fill at the output edges, where the two
// interpolators legitimately disagree, so those comparisons skip fill.
type scenario struct {
	name     string
	state    photograph.EditState
	skipFill bool
}

func scenarios() []scenario {
	return []scenario{
		{name: "neutral", state: photograph.Neutral()},
		{name: "exposure+contrast", state: photograph.EditState{Exposure: 0.8, Contrast: 0.3}},
		{name: "shadows+highlights", state: photograph.EditState{Shadows: 0.6, Highlights: -0.5}},
		{name: "temperature+saturation", state: photograph.EditState{Temperature: 0.4, Saturation: 0.5}},
		{name: "hue-shift", state: photograph.EditState{HueShift: 45}},
		{name: "selective-red", state: photograph.EditState{
			SelectiveColor: selectiveRed(),
		}},
		{name: "graduated", state: photograph.EditState{
			GraduatedFilter: &photograph.GradFilter{Top: 0, Bottom: 0.5, Exposure: -1},
		}},
		{name: "sharpness", state: photograph.EditState{Sharpness: 0.8}},
		{name: "rotate90", state: photograph.EditState{Rotate: 90}, skipFill: true},
		{name: "flip-both", state: photograph.EditState{FlipH: true, FlipV: true}, skipFill: true},
		{name: "straighten", state: photograph.EditState{Straighten: 3.5}, skipFill: true},
		{name: "keystone", state: photograph.EditState{
			Keystone: photograph.Keystone{Vertical: 0.15, Horizontal: -0.1},
		}, skipFill: true},
		{name: "crop", state: photograph.EditState{
			Crop: &photograph.Rect{X: 0.1, Y: 0.1, Width: 0.8, Height: 0.8},
		}, skipFill: true},
		{name: "combined", state: photograph.EditState{
			Exposure: 0.5, Contrast: 0.2, Saturation: 0.3,
			Straighten: 2, Sharpness: 0.5,
		}, skipFill: true},
	}
}

func selectiveRed() [8]photograph.HSLAdjust {
	var s [8]photograph.HSLAdjust
	s[0] = photograph.HSLAdjust{Hue: 10, Saturation: 0.4, Lightness: 0.1}
	return s
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		tolerance = flag.Int("tolerance", int(photograph.DefaultTolerance), "max per-channel difference")
		verbose   = flag.Bool("v", false, "log every comparison")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: parity [flags] <image-dir>")
		return 2
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	photograph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	gpuRenderer, err := gpu.NewRenderer()
	if err != nil {
		if errors.Is(err, backend.ErrInit) {
			fmt.Fprintf(os.Stderr, "parity: gpu unavailable, nothing to compare: %v\n", err)
			return backend.ExitNoUsableBackend
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	cpuRenderer := transform.Renderer{}

	sources, err := listImages(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "parity: no supported images in", flag.Arg(0))
		return 2
	}

	var compared, mismatched int
	for _, src := range sources {
		img, err := decode.Open(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "parity: %s: %v\n", src, err)
			mismatched++
			continue
		}
		for _, sc := range scenarios() {
			compared++
			if err := compareOne(cpuRenderer, gpuRenderer, img, sc, uint8(*tolerance)); err != nil {
				mismatched++
				fmt.Fprintf(os.Stderr, "FAIL %s [%s]: %v\n", filepath.Base(src), sc.name, err)
			} else if *verbose {
				fmt.Printf("ok   %s [%s]\n", filepath.Base(src), sc.name)
			}
		}
	}

	fmt.Printf("%d comparisons, %d mismatched, %d images\n", compared, mismatched, len(sources))
	if mismatched > 0 {
		return 1
	}
	return 0
}

func compareOne(cpuR, gpuR backend.Renderer, img *photograph.Image, sc scenario, tol uint8) error {
	ref, err := cpuR.Render(img, sc.state)
	if err != nil {
		return fmt.Errorf("cpu render: %w", err)
	}
	got, err := gpuR.Render(img, sc.state)
	if err != nil {
		if errors.Is(err, backend.ErrRefused) {
			// Oversize for the device. Not a parity failure.
			return nil
		}
		return fmt.Errorf("gpu render: %w", err)
	}
	res, err := photograph.CompareImages(ref, got, photograph.CompareOptions{
		Tolerance: tol,
		SkipFill:  sc.skipFill,
	})
	if err != nil {
		return err
	}
	photograph.Logger().Debug("compared",
		"scenario", sc.name, "pixels", res.Pixels,
		"max_diff", res.MaxDiff, "fill_ratio", res.FillRatio)
	return nil
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("parity: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if decode.Supported(p) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out, nil
}
