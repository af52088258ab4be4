package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jackc/pgx/v5/pgxpool"

	"medquery-orchestrator/internal/di"
	"medquery-orchestrator/internal/eval"
	"medquery-orchestrator/internal/infra"
	"medquery-orchestrator/internal/infra/config"
)

var (
	version = "dev"

	// Global flags
	verbose        bool
	checkpointFile string

	// Run command flags
	datasetFile string
	outputFile  string
	qps         float64
	topK        int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "evalrun",
	Short:   "Evaluate the medical query pipeline against a labelled dataset",
	Version: version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the evaluation",
	Long: `Run the evaluation over a dataset of labelled queries.

Each sample is retrieved, answered through the full pipeline, and graded
by an LLM judge. Results append to the output file and progress is
checkpointed, so an interrupted run resumes where it stopped.

Examples:
  # Evaluate the default dataset (resumes from checkpoint)
  evalrun run --dataset eval_dataset.json

  # Sustain at most 0.5 queries per second against the LLM backend
  evalrun run --dataset eval_dataset.json --qps 0.5

  # Start over
  evalrun reset-checkpoint && evalrun run --dataset eval_dataset.json`,
	RunE: runEval,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current checkpoint status",
	RunE:  showStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset-checkpoint",
	Short: "Reset the checkpoint to start from the beginning",
	RunE:  resetCheckpoint,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&checkpointFile, "checkpoint-file", "eval_checkpoint.json", "checkpoint file path")

	runCmd.Flags().StringVar(&datasetFile, "dataset", "eval_dataset.json", "dataset file path (JSON array of samples)")
	runCmd.Flags().StringVar(&outputFile, "output", "eval_results.json", "output file path")
	runCmd.Flags().Float64Var(&qps, "qps", 1.0, "maximum queries per second")
	runCmd.Flags().IntVar(&topK, "top-k", 5, "passages to retrieve per sample for metrics")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func runEval(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg := config.Load()

	samples, err := eval.LoadDataset(datasetFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pool *pgxpool.Pool
	if cfg.VectorBackend == "pgvector" {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
		pool, err = infra.NewPostgresDB(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect to db: %w", err)
		}
		defer pool.Close()
	}

	components, err := di.NewApplicationComponents(cfg, pool, logger)
	if err != nil {
		return fmt.Errorf("wire components: %w", err)
	}

	checkpoint := eval.NewCheckpointManager(checkpointFile)
	if err := checkpoint.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := checkpoint.Unlock(); err != nil {
			logger.Warn("failed to release checkpoint lock", slog.String("error", err.Error()))
		}
	}()

	writer, err := eval.NewRecordWriter(outputFile)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(qps), 1)
	runner := eval.NewRunner(
		components.Pipeline,
		components.Retriever,
		components.LLM,
		limiter,
		checkpoint,
		writer,
		topK,
		logger,
	)

	logger.Info("starting evaluation",
		slog.String("dataset", datasetFile),
		slog.String("checkpoint_file", checkpointFile),
		slog.String("output_file", outputFile),
		slog.Int("samples", len(samples)),
		slog.Float64("qps", qps),
	)

	// Setup signal handler for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", slog.String("signal", sig.String()))
		cancel()
	}()

	if err := runner.Run(ctx, samples); err != nil {
		if err == context.Canceled {
			logger.Info("evaluation interrupted, checkpoint saved for resume")
			return nil
		}
		return fmt.Errorf("run evaluation: %w", err)
	}

	logger.Info("evaluation complete", slog.Int("records", writer.Len()))
	return nil
}

func showStatus(cmd *cobra.Command, args []string) error {
	checkpoint := eval.NewCheckpointManager(checkpointFile)

	cp, err := checkpoint.Load()
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	if len(cp.Queries) == 0 {
		fmt.Println("No checkpoint found. Evaluation will start from the beginning.")
		return nil
	}

	fmt.Printf("Checkpoint Status:\n")
	fmt.Printf("  Version:         %d\n", cp.Version)
	fmt.Printf("  Processed Count: %d\n", cp.ProcessedCount)
	fmt.Printf("  Updated At:      %s\n", cp.UpdatedAt.Format(time.RFC3339))
	return nil
}

func resetCheckpoint(cmd *cobra.Command, args []string) error {
	checkpoint := eval.NewCheckpointManager(checkpointFile)
	if err := checkpoint.Reset(); err != nil {
		return err
	}
	fmt.Println("Checkpoint reset.")
	return nil
}
