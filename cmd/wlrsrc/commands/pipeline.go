package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/wlrsrc/internal/output"
	"github.com/bryanchriswhite/wlrsrc/internal/streamer"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline [DESCRIPTION...]",
	Short: "Feed captured frames into a GStreamer pipeline",
	Long: `Run a GStreamer pipeline whose source is the captured output. The
description is everything downstream of the source, in gst-launch syntax.
Without arguments stream.pipeline from the config is used.`,
	Example: `  # Show the output in a window
  wlrsrc pipeline videoconvert ! autovideosink

  # Record to a file at 60 fps
  wlrsrc pipeline --fps 60 videoconvert ! x264enc ! mp4mux ! filesink location=out.mp4`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().Int("fps", 0, "capture rate in frames per second (default from config, 30)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	viper.BindPFlag("stream.fps", cmd.Flags().Lookup("fps"))

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	description := cfg.Stream.Pipeline
	if len(args) > 0 {
		description = strings.Join(args, " ")
	}
	if description == "" {
		return fmt.Errorf("no pipeline given and stream.pipeline is not set")
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer engine.Stop()

	gst := output.NewGstOutput(description, componentLogger("gstreamer"))
	stream := streamer.New(engine, streamer.Options{FPS: cfg.Stream.FPS}, componentLogger("streamer"), gst)
	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start streamer: %w", err)
	}
	defer stream.Stop()

	log.Info().Str("pipeline", output.LaunchString(description)).Msg("Pipeline running, press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan

	log.Info().Msg("Shutting down gracefully")
	return nil
}
