package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/andriantochan/signbench/internal/config"
	"github.com/andriantochan/signbench/internal/log"
	internal_storage "github.com/andriantochan/signbench/internal/storage"
	"github.com/andriantochan/signbench/pkg/checkpoint"
	"github.com/andriantochan/signbench/pkg/report"
	"github.com/andriantochan/signbench/pkg/signing"
	"github.com/andriantochan/signbench/pkg/timing"
	"github.com/andriantochan/signbench/pkg/workflow"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// checkpointKey scopes Postgres-backed checkpoints; file checkpoints are
// scoped by path instead.
const checkpointKey = "signbench"

func SetupCLI(rootCmd *cobra.Command) {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the signing load test",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			resume, _ := cmd.Flags().GetBool("resume")
			if uploads, _ := cmd.Flags().GetInt("uploads"); uploads > 0 {
				cfg.Test.NumberOfUploads = uploads
			}
			if pdf, _ := cmd.Flags().GetString("pdf"); pdf != "" {
				cfg.Test.PDFFilePath = pdf
			}
			if err := cfg.Validate(); err != nil {
				log.GetLogger().Errorf("Invalid configuration: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			runBench(cfg, resume)
		},
	}
	runCmd.Flags().Bool("resume", false, "Resume from the last saved checkpoint")
	runCmd.Flags().Int("uploads", 0, "Override the number of file uploads")
	runCmd.Flags().String("pdf", "", "Override the PDF file to upload")

	reportCmd := &cobra.Command{
		Use:   "report [timing_results.json]",
		Short: "Print the summary table of a saved timing report",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			path := cfg.Output.TimingJSON
			if len(args) == 1 {
				path = args[0]
			}
			printReport(path)
		},
	}

	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or clear the saved checkpoint",
	}
	checkpointClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the saved checkpoint so the next run starts fresh",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initCheckpointStore(cfg)
			defer store.Close()
			if err := store.Clear(); err != nil {
				log.GetLogger().Errorf("Failed to clear checkpoint: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to clear checkpoint: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Checkpoint cleared\n")
		},
	}
	checkpointShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved checkpoint, if any",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			store := initCheckpointStore(cfg)
			defer store.Close()
			cp, err := store.Load()
			if err != nil {
				log.GetLogger().Errorf("Failed to load checkpoint: %v", err)
				os.Exit(1)
			}
			if cp == nil {
				fmt.Fprintf(os.Stdout, "No checkpoint found.\n")
				return
			}
			fmt.Fprintf(os.Stdout, "Run %s, request_id %s: %d files uploaded, last step %q (saved %s)\n",
				cp.RunID, cp.State.RequestID, len(cp.State.UploadedFiles), cp.LastStep(), cp.SavedAt)
		},
	}
	checkpointCmd.AddCommand(checkpointClearCmd, checkpointShowCmd)

	rootCmd.PersistentFlags().String("config", "", "Path to YAML configuration file")
	rootCmd.AddCommand(runCmd, reportCmd, checkpointCmd)
}

func runBench(cfg *config.Config, resume bool) {
	logger := log.GetLogger()
	if cfg.Output.ExecutionLog != "" {
		if err := log.TeeToFile(cfg.Output.ExecutionLog); err != nil {
			logger.Warnf("Failed to open execution log %s: %v", cfg.Output.ExecutionLog, err)
		}
	}

	respLog := signing.NewResponseLog()
	client := signing.NewHTTPClient(cfg.Endpoints, cfg.Credentials, cfg.RequestTimeout(), respLog, logger)
	store := initCheckpointStore(cfg)
	defer store.Close()
	recorder := timing.NewRecorder(logger)
	orch := workflow.NewOrchestrator(cfg.WorkflowOptions(), client, store, recorder, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := orch.Run(ctx, resume)

	// Reports and response bodies are written whatever the outcome, so a
	// failed or interrupted run keeps its diagnostics.
	rep := report.Build(orch.RunID(), orch.State().RequestID, len(orch.State().UploadedFiles), recorder.Records())
	saveArtifacts(cfg, rep, respLog)
	if pg, ok := store.(*internal_storage.PostgresStore); ok {
		if err := pg.SaveTimings(orch.RunID(), recorder.Records()); err != nil {
			logger.Errorf("Failed to persist timings: %v", err)
		}
	}
	rep.PrintSummary(os.Stdout)

	switch {
	case runErr == nil:
		logger.Infof("Test completed successfully")
	case errors.Is(runErr, workflow.ErrInterrupted):
		logger.Warnf("Run interrupted; checkpoint saved, rerun with --resume to continue")
	default:
		logger.Errorf("Test failed: %v", runErr)
		os.Exit(1)
	}
}

func saveArtifacts(cfg *config.Config, rep *report.Report, respLog *signing.ResponseLog) {
	logger := log.GetLogger()
	if err := rep.WriteJSON(cfg.Output.TimingJSON); err != nil {
		logger.Errorf("Failed to write timing JSON: %v", err)
	}
	if err := rep.WriteCSV(cfg.Output.TimingCSV); err != nil {
		logger.Errorf("Failed to write timing CSV: %v", err)
	}
	if err := respLog.SaveToFile(cfg.Output.ResponsesJSON); err != nil {
		logger.Errorf("Failed to write response log: %v", err)
	}
	logger.Infof("Results saved to %s and %s", cfg.Output.TimingJSON, cfg.Output.TimingCSV)
}

func printReport(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read report: %v\n", err)
		os.Exit(1)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		fmt.Fprintf(os.Stderr, "Error: parse report %s: %v\n", path, err)
		os.Exit(1)
	}
	rep.PrintSummary(os.Stdout)
}

func loadConfig(cmd *cobra.Command) *config.Config {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		log.GetLogger().Errorf("Failed to load configuration: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func initCheckpointStore(cfg *config.Config) checkpoint.Store {
	logger := log.GetLogger()
	if cfg.Checkpoint.Backend == "postgres" {
		store, err := internal_storage.InitStore(cfg.Checkpoint.DB, checkpointKey, logger)
		if err != nil {
			logger.Errorf("Failed to initialize checkpoint store: %v", err)
			os.Exit(1)
		}
		return store
	}
	return checkpoint.NewFileStore(cfg.Checkpoint.Path, logger)
}
