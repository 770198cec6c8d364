package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/wlrsrc/internal/api"
	"github.com/bryanchriswhite/wlrsrc/internal/output"
	"github.com/bryanchriswhite/wlrsrc/internal/streamer"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capture server",
	Long: `Start capturing the compositor output and serve it over HTTP.

The server exposes an MJPEG stream, a viewer page, snapshots in several image
formats and live engine statistics. When stream.pipeline is configured the
frames are also pushed into that GStreamer pipeline.`,
	Example: `  # Start server on default port (8080)
  wlrsrc serve

  # Capture through dma-bufs on a specific output
  wlrsrc serve --backend dmabuf --output DP-1

  # Start server on custom port at 60 fps
  wlrsrc serve --port 9090 --fps 60

  # Start with debug logging
  wlrsrc serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0, "HTTP server port (default from config, 8080)")
	serveCmd.Flags().Int("fps", 0, "capture rate in frames per second (default from config, 30)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Bound here because pipeline shares the stream.fps key
	viper.BindPFlag("server_port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("stream.fps", cmd.Flags().Lookup("fps"))

	configMgr, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("path", configMgr.GetConfigPath()).Str("backend", cfg.Capture.Backend).Msg("Configuration loaded")

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer engine.Stop()

	mjpeg := output.NewMJPEGOutput(output.Config{
		FPS:     cfg.Stream.FPS,
		Quality: cfg.Stream.JPEGQuality,
	}, componentLogger("mjpeg"))
	outputs := []output.Output{mjpeg}
	if cfg.Stream.Pipeline != "" {
		outputs = append(outputs, output.NewGstOutput(cfg.Stream.Pipeline, componentLogger("gstreamer")))
	}

	stream := streamer.New(engine, streamer.Options{FPS: cfg.Stream.FPS}, componentLogger("streamer"), outputs...)
	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start streamer: %w", err)
	}
	defer stream.Stop()

	server := api.NewServer(configMgr, engine, stream, mjpeg, componentLogger("api"))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.ServerPort)
	}()

	log.Info().
		Str("capturer", engine.Name()).
		Str("viewer", fmt.Sprintf("http://localhost:%d/", cfg.ServerPort)).
		Str("stream", fmt.Sprintf("http://localhost:%d/stream", cfg.ServerPort)).
		Str("api", fmt.Sprintf("http://localhost:%d/api", cfg.ServerPort)).
		Msg("wlrsrc is running, press Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}
	return nil
}
