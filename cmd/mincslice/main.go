package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"mincslice/internal/models"
	"mincslice/pkg/cache"
	"mincslice/pkg/colormap"
	"mincslice/pkg/config"
	"mincslice/pkg/loader"
	"mincslice/pkg/stats"
	"mincslice/pkg/visualization"
	"mincslice/pkg/volume"
)

const usage = `usage: mincslice <command> [flags] <volume>...

Commands:
  info      print header geometry and intensity statistics
  slice     render one slice to an image file
  sequence  render every slice along an axis into a directory
  overlay   blend the same slice of several volumes
  config    write a default configuration file

Volumes are MINC headers (.json or .header, with a sibling .raw file) or
MGH/MGZ files. Run "mincslice <command> -h" for command flags.
`

// session carries what every command needs after flag parsing
type session struct {
	cfg      *config.Config
	registry *prometheus.Registry
	opts     []volume.Option
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "info":
		err = runInfo(args)
	case "slice":
		err = runSlice(args)
	case "sequence":
		err = runSequence(args)
	case "overlay":
		err = runOverlay(args)
	case "config":
		err = runConfig(args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

// newFlagSet registers the flags shared by all volume commands.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", "mincslice.yaml", "Configuration file (defaults are used if missing)")
	return fs, configPath
}

// start loads the configuration, sets up logging and metrics and builds
// the volume options it implies.
func start(configPath string) (*session, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	closer := cfg.Log.SetLogger()
	registry := prometheus.NewRegistry()
	if err := cache.RegisterMetrics(registry); err != nil {
		closer.Close()
		return nil, nil, err
	}

	s := &session{cfg: cfg, registry: registry}
	if !cfg.Output.Verbose {
		s.opts = append(s.opts, volume.WithLogger(log.New(io.Discard, "", 0)))
	}
	if cfg.Viewer.ColorMap != "" {
		text, err := os.ReadFile(cfg.Viewer.ColorMap)
		if err != nil {
			closer.Close()
			return nil, nil, fmt.Errorf("failed to read color map: %w", err)
		}
		cm, err := colormap.Parse(string(text))
		if err != nil {
			closer.Close()
			return nil, nil, err
		}
		s.opts = append(s.opts, volume.WithColorMap(cm))
	}
	if !cfg.Viewer.AutoRange {
		s.opts = append(s.opts, volume.WithRange(cfg.Viewer.Min, cfg.Viewer.Max))
	}

	finish := func() {
		if cfg.Metrics.Textfile != "" {
			if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, registry); err != nil {
				log.Printf("Warning: failed to write metrics: %v", err)
			}
		}
		closer.Close()
	}
	return s, finish, nil
}

func (s *session) open(path string) (*volume.Volume, error) {
	return loader.Open(context.Background(), path, s.opts...)
}

func axisOrDefault(flagValue string, cfg *config.Config) (string, error) {
	if flagValue == "" {
		flagValue = cfg.Viewer.Axis
	}
	return visualization.AxisName(flagValue)
}

// middle returns index, or the centre slice when index is negative.
func middle(vol *volume.Volume, axis string, index int) int {
	if index >= 0 {
		return index
	}
	return vol.Header.Axis(axis).SpaceLength / 2
}

func runInfo(args []string) error {
	fs, configPath := newFlagSet("info")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("no volume given")
	}
	s, finish, err := start(*configPath)
	if err != nil {
		return err
	}
	defer finish()

	for _, path := range fs.Args() {
		vol, err := s.open(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		h := vol.Header

		fmt.Println("================================")
		fmt.Println(path)
		fmt.Println("================================")
		fmt.Printf("Datatype: %s\n", h.Datatype)
		fmt.Printf("Storage order: %s\n", strings.Join(h.Order[:], ", "))
		for _, name := range models.SpatialAxes {
			a := h.Axis(name)
			fmt.Printf("%s: length %d, start %.3f, step %.3f, cosines %v\n",
				name, a.SpaceLength, a.Start, a.Step, a.DirectionCosines)
		}
		if h.Time != nil {
			fmt.Printf("time: %d frames, start %.3f, step %.3f\n", h.Time.SpaceLength, h.Time.Start, h.Time.Step)
		}

		summary := stats.Summarize(vol.Buffer())
		fmt.Printf("\nVoxels: %s\n", humanize.Comma(int64(summary.Count)))
		fmt.Printf("Intensity range: [%g, %g]\n", summary.Min, summary.Max)
		fmt.Printf("Mean: %.3f, standard deviation: %.3f\n", summary.Mean, summary.StdDev)
		fmt.Printf("Entropy: %.3f bits\n", summary.Entropy)
		fmt.Printf("Preferred zoom for a 256x256 panel: %.3f\n", vol.PreferredZoom(256, 256))
	}
	return nil
}

func runSlice(args []string) error {
	fs, configPath := newFlagSet("slice")
	axisFlag := fs.String("axis", "", "Slicing axis: x, y or z (default from config)")
	index := fs.Int("index", -1, "Slice index (default: middle slice)")
	frame := fs.Int("time", 0, "Time frame")
	zoom := fs.Float64("zoom", 0, "Zoom factor (default from config)")
	output := fs.String("output", "slice.png", "Output image, .png or .jpg")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one volume")
	}

	s, finish, err := start(*configPath)
	if err != nil {
		return err
	}
	defer finish()

	axis, err := axisOrDefault(*axisFlag, s.cfg)
	if err != nil {
		return err
	}
	if *zoom <= 0 {
		*zoom = s.cfg.Viewer.Zoom
	}

	vol, err := s.open(fs.Arg(0))
	if err != nil {
		return err
	}
	viewer := visualization.NewViewer(vol, *zoom, s.cfg.Output.Format)

	n := middle(vol, axis, *index)
	img, err := viewer.ExtractSlice(axis, n, *frame)
	if err != nil {
		return err
	}
	if err := viewer.SaveSlice(img, *output); err != nil {
		return err
	}
	fmt.Printf("Saved %s slice %d (%dx%d) to %s\n", axis, n, img.Bounds().Dx(), img.Bounds().Dy(), *output)
	return nil
}

func runSequence(args []string) error {
	fs, configPath := newFlagSet("sequence")
	axisFlag := fs.String("axis", "", "Slicing axis: x, y, z or all (default from config)")
	frame := fs.Int("time", 0, "Time frame")
	dir := fs.String("dir", "", "Output directory (default from config)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("expected exactly one volume")
	}

	s, finish, err := start(*configPath)
	if err != nil {
		return err
	}
	defer finish()

	if *dir == "" {
		*dir = s.cfg.Output.Directory
	}
	axes := []string{"x", "y", "z"}
	if *axisFlag != "all" {
		axis, err := axisOrDefault(*axisFlag, s.cfg)
		if err != nil {
			return err
		}
		axes = []string{axis}
	}

	vol, err := s.open(fs.Arg(0))
	if err != nil {
		return err
	}
	viewer := visualization.NewViewer(vol, s.cfg.Viewer.Zoom, s.cfg.Output.Format)

	startTime := time.Now()
	total := 0
	for _, axis := range axes {
		axisDir := filepath.Join(*dir, axis[:1])
		fmt.Printf("Saving %s-axis slices to: %s\n", axis[:1], axisDir)
		n, err := viewer.SaveSliceSequence(axis, axisDir, *frame)
		total += n
		if err != nil {
			log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
		}
	}
	fmt.Printf("Saved %d slices in %.2f seconds\n", total, time.Since(startTime).Seconds())
	return nil
}

func parseRatios(text string) ([]float64, error) {
	if text == "" {
		return nil, nil
	}
	var ratios []float64
	for _, field := range strings.Split(text, ",") {
		r, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid blend ratio %q", field)
		}
		ratios = append(ratios, r)
	}
	return ratios, nil
}

func runOverlay(args []string) error {
	fs, configPath := newFlagSet("overlay")
	axisFlag := fs.String("axis", "", "Slicing axis: x, y or z (default from config)")
	index := fs.Int("index", -1, "Slice index in the first volume (default: middle slice)")
	frame := fs.Int("time", 0, "Time frame")
	zoom := fs.Float64("zoom", 0, "Zoom factor (default from config)")
	ratiosFlag := fs.String("ratios", "", "Comma separated blend ratios (default from config, else equal)")
	output := fs.String("output", "overlay.png", "Output image, .png or .jpg")
	fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("overlay needs at least two volumes")
	}

	s, finish, err := start(*configPath)
	if err != nil {
		return err
	}
	defer finish()

	axis, err := axisOrDefault(*axisFlag, s.cfg)
	if err != nil {
		return err
	}
	if *zoom <= 0 {
		*zoom = s.cfg.Viewer.Zoom
	}
	ratios, err := parseRatios(*ratiosFlag)
	if err != nil {
		return err
	}
	if ratios == nil {
		ratios = s.cfg.Overlay.BlendRatios
	}

	volumes := make([]*volume.Volume, fs.NArg())
	for i, path := range fs.Args() {
		if volumes[i], err = s.open(path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	overlay, err := volume.NewOverlay(volumes...)
	if err != nil {
		return err
	}
	if len(ratios) > 0 {
		if err := overlay.SetBlendRatios(ratios); err != nil {
			return err
		}
	}

	n := middle(volumes[0], axis, *index)
	img, err := overlay.Image(axis, n, *frame, *zoom)
	if err != nil {
		return err
	}
	viewer := visualization.NewViewer(volumes[0], *zoom, s.cfg.Output.Format)
	if err := viewer.SaveSlice(img, *output); err != nil {
		return err
	}
	fmt.Printf("Saved overlay of %d volumes (%s slice %d, ratios %v) to %s\n",
		len(volumes), axis, n, overlay.BlendRatios(), *output)

	slices, err := overlay.Slice(axis, n, *frame)
	if err != nil {
		return err
	}
	for i := 1; i < len(slices); i++ {
		if len(slices[i].Data) != len(slices[0].Data) {
			continue
		}
		sim := stats.Compare(slices[0].Data, slices[i].Data)
		fmt.Printf("Volume %d vs 0: RMSE %.3f, SSIM %.3f, MI %.3f\n", i, sim.RMSE, sim.SSIM, sim.MutualInformation)
	}
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	output := fs.String("output", "mincslice.yaml", "Configuration file to write")
	fs.Parse(args)

	if err := config.CreateDefaultConfigFile(*output); err != nil {
		return err
	}
	fmt.Printf("Default configuration written to %s\n", *output)
	return nil
}
