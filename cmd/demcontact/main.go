package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/demcontact/internal/config"
	"github.com/san-kum/demcontact/internal/experiment"
	"github.com/san-kum/demcontact/internal/export"
	"github.com/san-kum/demcontact/internal/material"
	"github.com/san-kum/demcontact/internal/metrics"
	"github.com/san-kum/demcontact/internal/optim"
	"github.com/san-kum/demcontact/internal/sim"
	"github.com/san-kum/demcontact/internal/storage"
	"github.com/san-kum/demcontact/internal/viz"
)

var (
	dataDir       string
	logLevel      string
	dt            float64
	duration      float64
	integrator    string
	printEvery    int
	noSave        bool
	fields        []string
	stepsPerFrame int
	theme         string
	svgPath       string
	sweepParams   []string
	sweepMetric   string
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "demcontact",
		Short: "discrete element contact simulator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".demcontact", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset|config.yaml]...",
		Short: "run simulations; several runs execute concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSimulations,
	}
	addOverrideFlags(runCmd)
	runCmd.Flags().IntVar(&printEvery, "print-every", 0, "steps between recorded samples")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the results")

	liveCmd := &cobra.Command{
		Use:   "live [preset|config.yaml]",
		Short: "run a simulation with the terminal monitor",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addOverrideFlags(liveCmd)
	liveCmd.Flags().IntVar(&stepsPerFrame, "steps-per-frame", 10, "time steps per frame")
	liveCmd.Flags().StringVar(&theme, "theme", viz.CurrentTheme.Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	checkCmd := &cobra.Command{
		Use:   "check [preset|config.yaml]",
		Short: "validate a configuration and build its model",
		Args:  cobra.ExactArgs(1),
		RunE:  checkConfig,
	}
	checkCmd.Flags().StringVar(&svgPath, "svg", "", "write the initial layout (x-z projection) to this SVG file")

	initCmd := &cobra.Command{
		Use:   "init [preset] [config.yaml]",
		Short: "write a preset as an editable configuration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetPreset(args[0])
			if cfg == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
			}
			if err := config.Save(args[1], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[1])
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDESCRIPTION")
			for _, name := range config.ListPresets() {
				desc, _ := config.Describe(name)
				fmt.Fprintf(w, "%s\t%s\n", name, desc)
			}
			return w.Flush()
		},
	}

	componentsCmd := &cobra.Command{
		Use:   "components",
		Short: "list force laws, damping laws, integrators and presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps := experiment.Components()
			kinds := make([]string, 0, len(comps))
			for k := range comps {
				kinds = append(kinds, k)
			}
			sort.Strings(kinds)
			for _, k := range kinds {
				fmt.Println(titleStyle.Render(k))
				names := slices.Sorted(slices.Values(comps[k]))
				for _, n := range names {
					fmt.Printf("  %s\n", n)
				}
			}
			return nil
		},
	}

	materialsCmd := &cobra.Command{
		Use:   "materials [library.ini]",
		Short: "show a material library, or the built-in example",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showMaterials,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot recorded samples of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&fields, "field", []string{"kinetic", "max_indentation"}, "sample columns to plot")
	plotCmd.Flags().StringVar(&svgPath, "svg", "", "also write the first field to this SVG file")

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset|config.yaml]",
		Short: "grid search run parameters minimising a metric",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addOverrideFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "grid axis as name=v1,v2,... ("+strings.Join(optim.ParamNames(), ", ")+")")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "energy_drift", "metric to minimise")
	_ = sweepCmd.MarkFlagRequired("param")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and samples as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	rootCmd.AddCommand(runCmd, liveCmd, checkCmd, initCmd, presetsCmd, componentsCmd, materialsCmd, listCmd, plotCmd, exportCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", 0, "time step")
	cmd.Flags().Float64Var(&duration, "time", 0, "simulated duration")
	cmd.Flags().StringVar(&integrator, "integrator", "", "integration scheme")
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

// loadConfig resolves a preset name or a YAML file, then applies the
// command-line overrides that were set.
func loadConfig(cmd *cobra.Command, arg string) (*config.Config, error) {
	cfg := config.GetPreset(arg)
	if cfg == nil {
		var err error
		cfg, err = config.Load(arg)
		if err != nil {
			return nil, fmt.Errorf("%s is neither a preset nor a readable config: %w", arg, err)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("print-every") {
		cfg.PrintEvery = printEvery
	}
	return cfg, nil
}

func runSimulations(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	batch := sim.NewBatch()
	exps := make([]*experiment.Experiment, 0, len(args))
	for _, arg := range args {
		cfg, err := loadConfig(cmd, arg)
		if err != nil {
			return err
		}
		exp := experiment.New(cfg)
		if err := exp.Setup(); err != nil {
			return fmt.Errorf("%s: %w", arg, err)
		}
		exps = append(exps, exp)
		batch.Add(exp.GetSimulator(), exp.SimConfig())
	}

	fmt.Printf("running %d simulation(s)...\n", batch.Len())
	start := time.Now()
	results, runErr := batch.Run(ctx)
	elapsed := time.Since(start)

	var st *storage.Store
	if !noSave {
		st = storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
	}

	for i, res := range results {
		if res == nil {
			continue
		}
		exp := exps[i]
		fmt.Println()
		fmt.Println(titleStyle.Render(res.Name))
		fmt.Printf("steps: %d  samples: %d  searches: %d  time: %.4gs\n", res.StepsTaken, len(res.Samples), res.Searches, res.Time)
		if st != nil {
			runID, err := st.Save(exp.Config(), len(exp.Model().Particles), res)
			if err != nil {
				return err
			}
			fmt.Printf("run id: %s\n", runID)
		}
		printMetrics(res.Metrics)
	}
	fmt.Printf("\ncompleted in %v\n", elapsed)
	return runErr
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %s\n", name, okStyle.Render(fmt.Sprintf("%.6g", m[name])))
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if err := viz.SetTheme(theme); err != nil {
		return err
	}

	build := func() (*sim.Simulator, error) {
		exp := experiment.New(cfg)
		if err := exp.Setup(); err != nil {
			return nil, err
		}
		return exp.GetSimulator(), nil
	}
	m, err := viz.NewModel(cfg.Name, build, cfg.Steps(), stepsPerFrame)
	if err != nil {
		return err
	}

	// Logs would tear the alternate screen.
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func checkConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	exp := experiment.New(cfg)
	if err := exp.Setup(); err != nil {
		return err
	}
	model := exp.Model()
	fmt.Println(okStyle.Render("ok") + " " + cfg.Name)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "particles\t%d\n", len(model.Particles))
	fmt.Fprintf(w, "walls\t%d\n", len(model.Walls))
	fmt.Fprintf(w, "point conditions\t%d\n", len(model.Points))
	fmt.Fprintf(w, "materials\t%d\n", len(exp.Materials().Materials()))
	fmt.Fprintf(w, "material pairs\t%d\n", len(exp.Materials().Pairs()))
	fmt.Fprintf(w, "steps\t%d\n", cfg.Steps())
	fmt.Fprintf(w, "integrator\t%s\n", cfg.Integrator)
	if err := w.Flush(); err != nil {
		return err
	}

	if svgPath == "" {
		return nil
	}
	canvas := viz.NewCanvas(80, 40)
	viz.Draw(canvas, exp.GetSimulator())
	if err := os.WriteFile(svgPath, []byte(export.CanvasToSVG(canvas, 4)), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", svgPath)
	return nil
}

func showMaterials(cmd *cobra.Command, args []string) error {
	var (
		reg *material.Registry
		err error
	)
	if len(args) == 1 {
		reg, err = material.LoadINI(args[0])
	} else {
		fmt.Println(mutedStyle.Render(material.ExampleLibrary))
		reg, err = material.ParseINI(material.ExampleLibrary)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tYOUNG\tPOISSON\tDENSITY")
	for _, m := range reg.Materials() {
		fmt.Fprintf(w, "%d\t%s\t%.4g\t%.3g\t%.4g\n", m.ID, m.Name, m.Young, m.Poisson, m.Density)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "PAIR\tFORCE LAW\tROLLING\tFRICTION\tRESTITUTION\tWEAR")
	for _, k := range reg.Pairs() {
		p, err := reg.Pair(k.A, k.B)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d-%d\t%s\t%s\t%.3g\t%.3g\t%t\n", k.A, k.B, p.ForceLaw, p.RollingFriction, p.Law.Friction, p.Law.Restitution, p.Wear.Compute)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tDURATION\tDT\tINTEG\tPARTICLES\tSTEPS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4gs\t%.2es\t%s\t%d\t%d\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Particles,
			run.Steps,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 || len(fields) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("name: %s\n", meta.Name)
	fmt.Printf("samples: %d\n\n", len(samples))

	for _, field := range fields {
		data, err := storage.Field(samples, field)
		if err != nil {
			return err
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(field+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	if svgPath == "" {
		return nil
	}
	times, _ := storage.Field(samples, "time")
	data, _ := storage.Field(samples, fields[0])
	svg := export.SeriesToSVG(times, data, 800, 400, string(viz.CurrentTheme.Plot), fields[0]+" vs time")
	if svg == "" {
		return fmt.Errorf("not enough samples for an SVG plot")
	}
	if err := os.WriteFile(svgPath, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", svgPath)
	return nil
}

// parseAxis reads a grid axis of the form name=v1,v2,...
func parseAxis(s string) (string, []float64, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok || name == "" || list == "" {
		return "", nil, fmt.Errorf("invalid grid axis %q, want name=v1,v2", s)
	}
	parts := strings.Split(list, ",")
	values := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("grid axis %s: %w", name, err)
		}
		values[i] = v
	}
	return name, values, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	names := make([]string, len(sweepParams))
	ranges := make([][]float64, len(sweepParams))
	for i, axis := range sweepParams {
		if names[i], ranges[i], err = parseAxis(axis); err != nil {
			return err
		}
	}
	g, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	best, value, trials, err := g.Search(ctx, base, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(sweepMetric))
	for _, t := range trials {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, fmt.Sprintf("%g", t.Params[n]))
		}
		if t.Err != nil {
			row = append(row, mutedStyle.Render("failed: "+t.Err.Error()))
		} else {
			row = append(row, fmt.Sprintf("%.6g", t.Value))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(titleStyle.Render("best") + " ")
	for _, n := range names {
		fmt.Printf("%s=%g ", n, best[n])
	}
	fmt.Printf("%s=%s\n", sweepMetric, okStyle.Render(fmt.Sprintf("%.6g", value)))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*storage.RunMetadata
		Samples []metrics.Snapshot `json:"samples"`
	}{meta, samples})
}
