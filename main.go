package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	Md "github.com/maroda/formsense/display"
	Fe "github.com/maroda/formsense/engine"
	Mo "github.com/maroda/formsense/obvy"
	Fp "github.com/maroda/formsense/plugin"
)

var (
	flagDemo     bool
	flagTUI      bool
	flagAddr     string
	flagMode     string
	flagExercise string
	flagConfig   string
	flagOffload  bool
	flagDataDir  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "formsense",
		Short: "Formsense - real-time exercise form analysis",
		Long: `Formsense analyzes exercise form in real time from pose-detector
landmark frames: it tracks repetition phases, grades each rep, flags
biomechanically risky form, and delivers adaptive audio and visual
coaching feedback.

Frames arrive over the /ws/ingest websocket from an external pose
detector. Use --demo to feed a synthetic squat instead.`,
		RunE: run,
	}

	rootCmd.Flags().BoolVar(&flagDemo, "demo", false, "Feed a synthetic squat (no pose detector required)")
	rootCmd.Flags().BoolVar(&flagTUI, "tui", false, "Run the terminal dashboard")
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":8090", "Listen address for the web and metrics server")
	rootCmd.Flags().StringVar(&flagMode, "mode", "beginner", "Skill mode: beginner or pro")
	rootCmd.Flags().StringVar(&flagExercise, "exercise", "squat", "Exercise: squat, pushup, plank, deadlift, bicep-curl")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "JSON config file (overrides mode/exercise flags)")
	rootCmd.Flags().BoolVar(&flagOffload, "offload", false, "Offload angle extraction to a background worker")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "BadgerDB directory for rep telemetry (disabled when empty)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	user := Fe.FillEnvVar("USER")
	fmt.Printf("Formsense initializing for ... %s\n", user)

	session, err := buildSession()
	if err != nil {
		return err
	}

	if flagOffload {
		session.Worker = Fe.NewAngleWorker(Fe.FillEnvVarInt("FORMSENSE_OFFLOAD_DEPTH", 4))
	}

	if flagDataDir != "" {
		output, err := Fp.NewBadgerOutput(flagDataDir, Fe.FillEnvVarInt("FORMSENSE_BATCH_SIZE", 10))
		if err != nil {
			return err
		}
		session.Output = output
	}

	// Tracing is best-effort: missing collector config only logs.
	if shutdown, err := Mo.InitOTelHNY(); err != nil {
		slog.Warn("OpenTelemetry disabled", slog.Any("Error", err))
	} else {
		defer shutdown()
	}

	var source Fe.FrameSource
	if flagDemo {
		source = Fe.NewDemoSource(0)
	}

	if flagTUI {
		return Md.StartTrainerView(session, source, flagAddr)
	}
	return Md.StartWebNoTUI(session, source, flagAddr)
}

func buildSession() (*Fe.Session, error) {
	if flagConfig != "" {
		cf, err := Fe.LoadConfigFileName(flagConfig)
		if err != nil {
			return nil, err
		}
		return Fe.NewSessionFromConfig(cf)
	}

	mode, err := Fe.ParseMode(flagMode)
	if err != nil {
		return nil, err
	}
	exercise, err := Fe.ParseExercise(flagExercise)
	if err != nil {
		return nil, err
	}
	return Fe.NewSession(mode, exercise)
}
