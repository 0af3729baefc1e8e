package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"gocorr/adapters/excel"
	"gocorr/adapters/postgres"
	"gocorr/app"
	"gocorr/domain/correlation"
	"gocorr/internal"
	"gocorr/internal/config"
	"gocorr/internal/metrics"
	"gocorr/internal/migration"
	"gocorr/internal/testkit"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := internal.NewLogger(cfg.Log.Level, os.Stderr)

	rootCmd := &cobra.Command{
		Use:           "gocorr",
		Short:         "Sliding-window pairwise correlation with per-timestep top-K ranking",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newTopCmd(cfg, logger),
		newFullCmd(cfg, logger),
		newVerifyCmd(cfg, logger),
		newMigrateCmd(cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// inputFlags selects the matrix a command runs on: a file, or seeded data
type inputFlags struct {
	input        string
	seriesInRows bool
	series       int
	size         int
	seed         int64
	walks        bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.input, "input", "", "Series file (.xlsx or .csv); generated data when empty")
	cmd.Flags().BoolVar(&f.seriesInRows, "series-in-rows", false, "Input holds one series per row instead of per column")
	cmd.Flags().IntVar(&f.series, "series", 100, "Number of generated series")
	cmd.Flags().IntVar(&f.size, "size", 500, "Samples per generated series")
	cmd.Flags().Int64Var(&f.seed, "seed", 42, "Random seed for generated series")
	cmd.Flags().BoolVar(&f.walks, "walks", false, "Generate correlated random walks instead of uniform samples")
}

func (f *inputFlags) load(logger zerolog.Logger) (*excel.SeriesData, error) {
	if f.input != "" {
		readerCfg := excel.DefaultReaderConfig()
		readerCfg.SeriesInRows = f.seriesInRows
		return excel.NewDataReader(f.input, readerCfg, logger).ReadData()
	}

	genCfg := testkit.DefaultSeriesConfig()
	genCfg.NumSeries, genCfg.SizeSeries, genCfg.Seed = f.series, f.size, f.seed
	if f.walks {
		genCfg.Pattern = testkit.PatternWalks
	}
	matrix, err := correlation.NewMatrix(testkit.Generate(genCfg))
	if err != nil {
		return nil, err
	}
	return &excel.SeriesData{Matrix: matrix}, nil
}

// paramFlags overrides the environment configuration per invocation
type paramFlags struct {
	window    int
	timesteps int
	topK      int
	mode      string
	workers   int
	pipelined bool
}

func (f *paramFlags) register(cmd *cobra.Command, cfg *config.Config) {
	p := cfg.Params()
	cmd.Flags().IntVar(&f.window, "window", p.Window, "Rolling window length W")
	cmd.Flags().IntVar(&f.timesteps, "timesteps", p.Timesteps, "Timesteps to rank; 0 ranks every sample")
	cmd.Flags().IntVar(&f.topK, "top", p.TopK, "Pairs kept per timestep")
	cmd.Flags().StringVar(&f.mode, "mode", string(p.Mode), "Kernel mode: sequential or stateless")
	cmd.Flags().IntVar(&f.workers, "workers", p.Workers, "Parallel kernel workers")
	cmd.Flags().BoolVar(&f.pipelined, "pipelined", p.Pipelined, "Overlap the prepare and compute stages")
}

func (f *paramFlags) params(cfg *config.Config) correlation.Params {
	p := cfg.Params()
	p.Window = f.window
	p.Timesteps = f.timesteps
	p.TopK = f.topK
	p.Mode = correlation.Mode(f.mode)
	p.Workers = f.workers
	p.Pipelined = f.pipelined
	return p
}

func newTopCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	var in inputFlags
	var pf paramFlags
	var asJSON, persist, profile bool
	var xlsxOut string

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Rank the strongest correlated pairs at every timestep",
		Long: `Rank the top-K most correlated series pairs at every timestep using a
rolling window of W samples.

Example: gocorr top --series 200 --size 1000 --window 32 --top 10 --seed 7
         gocorr top --input prices.csv --window 9 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := in.load(logger)
			if err != nil {
				return err
			}

			opts := app.ServiceOptions{Profile: profile || cfg.Profiling.Enabled}
			if persist {
				db, err := openDatabase(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				opts.Repository = postgres.NewResultRepository(db)
			}

			svc := app.NewCorrelationService(logger, metrics.NewRegistry(), opts)
			result, err := svc.Run(cmd.Context(), data.Matrix, pf.params(cfg))
			if err != nil {
				return err
			}

			if xlsxOut != "" {
				if err := excel.WriteResults(xlsxOut, result, data.Names); err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(result)
			}
			printTop(result, data.Names)
			return nil
		},
	}

	in.register(cmd)
	pf.register(cmd, cfg)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full run as JSON")
	cmd.Flags().BoolVar(&persist, "persist", false, "Store the run in DATABASE_URL")
	cmd.Flags().BoolVar(&profile, "profile", false, "Attach score summaries and p-values")
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "Also export the ranking to this .xlsx file")

	return cmd
}

func newFullCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	var in inputFlags
	var mode string
	var workers int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "full",
		Short: "Correlate every pair over the whole series",
		Long: `Compute the correlation of every series pair with the window spanning the
full series, and print the vector in packed pair-index order.

Example: gocorr full --series 50 --size 200 --seed 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := in.load(logger)
			if err != nil {
				return err
			}

			svc := app.NewCorrelationService(logger, nil, app.ServiceOptions{})
			scores, err := svc.FullCorrelations(cmd.Context(), data.Matrix, correlation.Mode(mode), workers)
			if err != nil {
				return err
			}

			if asJSON {
				values := make([]*float64, len(scores.Scores))
				for i, ps := range scores.Scores {
					if ps.Status == correlation.StatusValid {
						v := ps.Value
						values[i] = &v
					}
				}
				return writeJSON(values)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tA\tB\tVALUE")
			for _, ps := range scores.Scores {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", ps.Index, name(data.Names, int(ps.A)), name(data.Names, int(ps.B)), formatScore(ps))
			}
			return w.Flush()
		},
	}

	in.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", string(cfg.Correlation.Mode), "Kernel mode: sequential or stateless")
	cmd.Flags().IntVar(&workers, "workers", cfg.Correlation.Workers, "Parallel kernel workers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the packed vector as JSON; degenerate pairs are null")

	return cmd
}

func newVerifyCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	var in inputFlags
	var pf paramFlags
	var tolerance float64

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an incremental kernel against direct summation",
		Long: `Run the configured kernel and a direct-summation reference kernel side by
side and report the largest absolute deviation.

Example: gocorr verify --series 64 --size 300 --window 16 --mode stateless`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := in.load(logger)
			if err != nil {
				return err
			}

			svc := app.NewCorrelationService(logger, nil, app.ServiceOptions{})
			report, err := svc.Verify(cmd.Context(), data.Matrix, pf.params(cfg))
			if err != nil {
				return err
			}
			if err := writeJSON(report); err != nil {
				return err
			}
			if !report.Within(tolerance) {
				return fmt.Errorf("max deviation %g exceeds tolerance %g", report.MaxDeviation, tolerance)
			}
			return nil
		},
	}

	in.register(cmd)
	pf.register(cmd, cfg)
	cmd.Flags().Float64Var(&tolerance, "tolerance", 1e-9, "Largest acceptable absolute deviation")

	return cmd
}

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the result tables in DATABASE_URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Println("schema version", migration.NewRunner().Version())
			return nil
		},
	}
}

// openDatabase connects to DATABASE_URL and brings the schema up to date
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for persistence")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdle)

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return db, nil
}

func printTop(result *correlation.RunResult, names []string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "T\tRANK\tA\tB\tVALUE\tINDEX")
	for _, step := range result.Steps {
		for rank, e := range step.Top {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%.6f\t%d\n", step.Timestep, rank+1, name(names, e.A), name(names, e.B), e.Value, e.Index)
		}
	}
	w.Flush()
	fmt.Fprintf(os.Stderr, "run %s: %d timesteps in %s, fingerprint %s\n",
		result.RunID, len(result.Steps), result.Duration, result.Fingerprint)
}

func formatScore(ps correlation.PairScore) string {
	if ps.Status != correlation.StatusValid {
		return ps.Status.String()
	}
	return fmt.Sprintf("%.6f", ps.Value)
}

func name(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprint(i)
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
