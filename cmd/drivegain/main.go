package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/drivegain/internal/analysis"
	"github.com/san-kum/drivegain/internal/config"
	"github.com/san-kum/drivegain/internal/design"
	"github.com/san-kum/drivegain/internal/optim"
	"github.com/san-kum/drivegain/internal/sim"
	"github.com/san-kum/drivegain/internal/store"
	"github.com/san-kum/drivegain/internal/viz"
	"github.com/spf13/cobra"
)

var (
	savePlots      bool
	nonInteractive bool
	configFile     string
	preset         string
	gear           string
	dt             float64
	outDir         string
	name           string
	lang           string
	table          bool
	createDir      bool
	plotsDir       string
	trajectory     string
	verbose        bool

	searches     []string
	metricName   string
	maxOvershoot float64

	columns []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "drivegain",
		Short:         "design drivetrain controller, feedforward and estimator gains",
		Args:          cobra.NoArgs,
		RunE:          runDesign,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := rootCmd.Flags()
	f.BoolVar(&savePlots, "save-plots", false, "write drivetrain_response.svg and drivetrain_pzmaps.svg instead of showing plots")
	f.BoolVar(&nonInteractive, "noninteractive", false, "do not open the plot viewer")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&gear, "gear", string(config.GearHigh), "gear to design for (low|high)")
	f.Float64Var(&dt, "dt", config.DefaultDt, "sample period in seconds")
	f.StringVar(&outDir, "out", config.DefaultOutDir, "directory for the generated coefficients")
	f.StringVar(&name, "name", config.DefaultName, "identifier of the generated coefficients")
	f.StringVar(&lang, "lang", config.DefaultLang, "language of the generated coefficients (go|cpp)")
	f.BoolVar(&table, "table", true, "also emit the packaged coefficient structures")
	f.BoolVar(&createDir, "create-dir", false, "create the output directory if it is missing")
	f.StringVar(&plotsDir, "plots-dir", ".", "directory for saved plots")
	f.StringVar(&trajectory, "trajectory", "", "write the simulated trajectory (.csv or .json)")
	rootCmd.MarkFlagsMutuallyExclusive("config", "preset")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every stage")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write the default configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	compareCmd := &cobra.Command{
		Use:   "compare [preset...]",
		Short: "design presets side by side",
		RunE:  comparePresets,
	}

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search weights for the lowest metric without overshoot",
		Args:  cobra.NoArgs,
		RunE:  tuneWeights,
	}
	tf := tuneCmd.Flags()
	tf.StringArrayVar(&searches, "search", []string{"lqr.pos=0.05:0.3:6", "lqr.vel=0.5:1.5:5"}, "parameter=lo:hi:n to search")
	tf.StringVar(&metricName, "metric", "rms_voltage", "metric to minimize")
	tf.Float64Var(&maxOvershoot, "max-overshoot", 1e-3, "largest accepted position overshoot (m)")
	tf.StringVar(&configFile, "config", "", "config file path (yaml)")
	tf.StringVar(&preset, "preset", "", "use preset configuration")
	tf.StringVar(&gear, "gear", string(config.GearHigh), "gear to design for (low|high)")
	tf.Float64Var(&dt, "dt", config.DefaultDt, "sample period in seconds")
	tuneCmd.MarkFlagsMutuallyExclusive("config", "preset")

	plotCmd := &cobra.Command{
		Use:   "plot [trajectory.csv]",
		Short: "plot columns of a saved trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotTrajectory,
	}
	plotCmd.Flags().StringSliceVar(&columns, "columns", []string{"left_position", "ref_left_position"}, "columns to plot")

	rootCmd.AddCommand(presetsCmd, initCmd, compareCmd, tuneCmd, plotCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (see 'drivegain presets')", preset)
		}
	}

	fl := cmd.Flags()
	if fl.Changed("gear") {
		cfg.Gear = config.Gear(gear)
	}
	if fl.Changed("dt") {
		cfg.Dt = dt
	}
	if fl.Changed("out") {
		cfg.Export.Dir = outDir
	}
	if fl.Changed("name") {
		cfg.Export.Name = name
	}
	if fl.Changed("lang") {
		cfg.Export.Lang = lang
	}
	if fl.Changed("table") {
		cfg.Export.Table = table
	}
	if fl.Changed("create-dir") {
		cfg.Export.CreateDir = createDir
	}
	return cfg, nil
}

func runDesign(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	d, err := design.New(cfg, log)
	if err != nil {
		return err
	}
	files, err := d.Export()
	if err != nil {
		return err
	}
	log.Info("exported", "files", files)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := d.Simulate(ctx)
	if err != nil {
		return err
	}

	if trajectory != "" {
		meta := store.RunMetadata{Name: cfg.Export.Name, Preset: preset, Gear: string(cfg.Gear), Dt: cfg.Dt}
		if err := store.Save(trajectory, meta, res); err != nil {
			return err
		}
		files = append(files, trajectory)
	}

	var r viz.Renderer
	switch {
	case savePlots:
		svg := viz.NewSVG(plotsDir, "drivetrain")
		r = svg
		files = append(files, svg.PolesPath(), svg.ResponsePath())
	case !nonInteractive:
		r = viz.NewTerminal(d.Summary(nil, nil).Title)
	}

	// The viewer takes over the screen, so the report goes out after it.
	if r != nil {
		if err := render(r, d.Poles, res); err != nil {
			return err
		}
	}
	fmt.Print(viz.Report(d.Summary(res, files)))
	return nil
}

func render(r viz.Renderer, poles *analysis.PoleSet, res *sim.Result) error {
	if err := r.RenderPoles(poles); err != nil {
		return err
	}
	return r.RenderResponse(res)
}

func comparePresets(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = config.ListPresets()
	}
	cfgs := make(map[string]*config.Config, len(names))
	for _, n := range names {
		cfg := config.GetPreset(n)
		if cfg == nil {
			return fmt.Errorf("unknown preset %q (see 'drivegain presets')", n)
		}
		cfgs[n] = cfg
	}

	out := design.Sweep(cmd.Context(), cfgs, newLogger())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tK[0,0]\tK[0,1]\tL[1,0]\tCL RADIUS\tOBS RADIUS\tOVERSHOOT\tSATURATED\t")
	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
			fmt.Fprintf(w, "%s\t%v\t\t\t\t\t\t\t\n", o.Name, o.Err)
			continue
		}
		d := o.Design
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%.4f\t%.6f\t%.6f\t%.4g\t%.1f%%\t\n",
			o.Name,
			d.LQR.K.At(0, 0), d.LQR.K.At(0, 1), d.Kalman.L.At(1, 0),
			analysis.Radius(d.Poles.ClosedLoop), analysis.Radius(d.Poles.Observer),
			o.Result.Overshoot(0, d.Config.Simulation.Step.Distance),
			100*o.Result.Metrics["saturation"])
	}
	w.Flush()
	if failed > 0 {
		return fmt.Errorf("%d of %d presets failed", failed, len(out))
	}
	return nil
}

func tuneWeights(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(searches))
	ranges := make([][]float64, 0, len(searches))
	for _, s := range searches {
		n, r, err := parseSearch(s)
		if err != nil {
			return err
		}
		names = append(names, n)
		ranges = append(ranges, r)
	}

	g := optim.NewGridSearch(names, ranges)
	g.MaxOvershoot = maxOvershoot
	best, err := g.Search(cmd.Context(), cfg, metricName)
	if err != nil {
		return err
	}

	fmt.Printf("evaluated %d points, rejected %d\n", best.Evaluated, best.Rejected)
	for _, n := range names {
		fmt.Printf("  %s = %.6g\n", n, best.Params[n])
	}
	fmt.Printf("  %s = %.6g\n\n", metricName, best.Value)
	fmt.Print(viz.Report(best.Design.Summary(nil, nil)))
	return nil
}

// parseSearch reads "name=lo:hi:n".
func parseSearch(s string) (string, []float64, error) {
	name, spec, ok := strings.Cut(s, "=")
	if !ok {
		return "", nil, fmt.Errorf("search %q: want name=lo:hi:n", s)
	}
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("search %q: want name=lo:hi:n", s)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("search %q: %w", s, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("search %q: %w", s, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("search %q: bad point count", s)
	}
	return name, optim.Linspace(lo, hi, n), nil
}

func plotTrajectory(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	header, rows, err := store.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	graph, err := viz.PlotColumns(header, rows, columns, 80, 15)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	return nil
}
