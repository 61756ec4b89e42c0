// Command photograph batch-renders edited photos. It loads the sidecar
// edit state next to each input image, applies it through the configured
// backend, and writes the results to the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	photograph "github.com/divanvisagie/Photograph"
	"github.com/divanvisagie/Photograph/backend"
	"github.com/divanvisagie/Photograph/config"
	"github.com/divanvisagie/Photograph/decode"
	"github.com/divanvisagie/Photograph/encode"
	"github.com/divanvisagie/Photograph/export"
	"github.com/divanvisagie/Photograph/gpu"
	"github.com/divanvisagie/Photograph/sidecar"
	"github.com/divanvisagie/Photograph/transform"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, cfgErr := config.Load()

	var (
		outDir  = flag.String("out", defaultStr(cfg.ExportDir, "export"), "output directory")
		format  = flag.String("format", defaultStr(cfg.ExportFormat, "jpeg"), "output format: jpeg, png or qoi")
		quality = flag.Int("quality", cfg.ExportQuality, "JPEG quality, 0 for the profile default")
		profile = flag.String("profile", "balanced", "encode profile: fast, balanced or best")
		maxEdge = flag.Int("max-edge", 0, "downscale longer edge to this many pixels, 0 keeps full size")
		workers = flag.Int("workers", cfg.ExportWorkers, "parallel export workers, 0 for GOMAXPROCS")
		mode    = flag.String("backend", cfg.PreviewBackend, "render backend: auto, gpu or cpu")
		verbose = flag.Bool("v", false, "verbose logging")
	)
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	photograph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	log := photograph.Logger()
	if cfgErr != nil {
		log.Warn("config unreadable, using defaults", "error", cfgErr)
	}

	if flag.NArg() == 0 {
		usage()
		return 2
	}

	configured, err := backend.ParseMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	effective := backend.ModeFromEnv(configured)

	outFormat, err := encode.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	outProfile, err := encode.ParseProfile(*profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	sources, err := collectSources(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "photograph: no supported images found")
		return 2
	}

	exec := buildExecutor(effective, log)
	if err := exec.StartupCheck(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return backend.ExitNoUsableBackend
	}
	log.Info("backend ready", "mode", effective.String(), "active", exec.Active())
	if exec.GPU != nil {
		status := gpu.RuntimeStatus()
		log.Info("gpu adapter",
			"name", status.AdapterName,
			"max_texture_dim", status.MaxTextureDimension)
	}

	tasks := make([]export.Task, 0, len(sources))
	for _, src := range sources {
		state, err := sidecar.Load(src)
		if err != nil {
			log.Warn("sidecar unreadable, exporting without edits", "path", src, "error", err)
			state = photograph.Neutral()
		}
		tasks = append(tasks, export.Task{SourcePath: src, State: state})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan export.Event, 1)
	go func() {
		for ev := range events {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] ok=%d failed=%d %s",
				ev.Done, ev.Total, ev.OK, ev.Failed, filepath.Base(ev.Current))
		}
	}()

	summary := export.New(exec).Run(ctx, tasks, export.Options{
		OutputDir: *outDir,
		Format:    outFormat,
		Quality:   *quality,
		Profile:   outProfile,
		MaxEdge:   *maxEdge,
		Workers:   *workers,
	}, events)
	close(events)
	fmt.Fprintln(os.Stderr)

	fmt.Printf("exported %d/%d to %s in %s\n", summary.OK, summary.Total, summary.OutputDir, summary.Elapsed.Round(time.Millisecond))
	if summary.Failed > 0 {
		for _, res := range summary.Results {
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "failed %s: %v\n", filepath.Base(res.SourcePath), res.Err)
			}
		}
		return 1
	}
	return 0
}

// buildExecutor constructs the renderer pair for the mode. GPU init
// failure is reported here but only StartupCheck decides whether the
// process can run without it.
func buildExecutor(mode backend.Mode, log *slog.Logger) *backend.Executor {
	exec := &backend.Executor{
		Mode:             mode,
		CPU:              transform.Renderer{},
		AllowCPUFallback: backend.DebugCPUFallbackAllowed(),
	}
	if mode != backend.ModeCPU {
		r, err := gpu.NewRenderer()
		if err != nil {
			log.Warn("gpu unavailable", "error", err)
		} else {
			exec.GPU = r
		}
	}
	return exec
}

// collectSources expands directory arguments into the supported image
// files they contain, one level deep, and keeps file arguments as-is.
func collectSources(args []string) ([]string, error) {
	var sources []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("photograph: %w", err)
		}
		if !info.IsDir() {
			sources = append(sources, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("photograph: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			p := filepath.Join(arg, e.Name())
			if decode.Supported(p) {
				sources = append(sources, p)
			}
		}
	}
	sort.Strings(sources)
	return sources, nil
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: photograph [flags] <image|dir>...

Renders each image with the edits recorded in its .edits sidecar and
writes the result to the output directory.

`)
	flag.PrintDefaults()
}
