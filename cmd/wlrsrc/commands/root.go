package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/wlrsrc/internal/config"
	"github.com/bryanchriswhite/wlrsrc/internal/logger"
)

var (
	cfgFile string
	pretty  bool
	log     = logger.Nop()
	rootCmd = &cobra.Command{
		Use:   "wlrsrc",
		Short: "wlrsrc - wlroots screen capture source",
		Long: `wlrsrc captures the output of a wlroots-based Wayland compositor through
the wlr-screencopy protocol and hands frames to a streaming pipeline.

Features:
  • Shared-memory (wl_shm) or GPU (linux-dmabuf + GBM) buffers
  • Cursor overlay on request
  • MJPEG stream and snapshots over HTTP
  • Feeding frames into any GStreamer pipeline
  • Persistent configuration`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := viper.GetString("log_level")
			if level == "" {
				level = "info"
			}
			log = logger.New(level, pretty)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wlrsrc/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "human-readable console logs")
	rootCmd.PersistentFlags().String("backend", "", "capture backend (shm or dmabuf)")
	rootCmd.PersistentFlags().Bool("show-cursor", true, "composite the cursor into captured frames")
	rootCmd.PersistentFlags().String("display", "", "Wayland display socket (default is $WAYLAND_DISPLAY)")
	rootCmd.PersistentFlags().String("output", "", "wl_output name to capture (default is the first output)")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("capture.backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("capture.show_cursor", rootCmd.PersistentFlags().Lookup("show-cursor"))
	viper.BindPFlag("capture.display", rootCmd.PersistentFlags().Lookup("display"))
	viper.BindPFlag("capture.output", rootCmd.PersistentFlags().Lookup("output"))
}

// initConfig lets WLRSRC_* environment variables stand in for flags,
// e.g. WLRSRC_CAPTURE_BACKEND=dmabuf or WLRSRC_CONFIG=/etc/wlrsrc.yaml.
func initConfig() {
	viper.SetEnvPrefix("wlrsrc")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile == "" {
		cfgFile = viper.GetString("config")
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig reads the config file and applies command-line overrides
// without persisting them.
func loadConfig() (*config.Manager, *config.Config, error) {
	configMgr, err := openConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg := configMgr.Get()
	if err := applyOverrides(cfg, viper.GetViper()); err != nil {
		return nil, nil, err
	}
	log = logger.New(cfg.LogLevel, pretty)
	return configMgr, cfg, nil
}

// applyOverrides copies flags the user set explicitly onto cfg
func applyOverrides(cfg *config.Config, v *viper.Viper) error {
	if v.IsSet("capture.backend") && v.GetString("capture.backend") != "" {
		cfg.Capture.Backend = v.GetString("capture.backend")
	}
	if v.IsSet("capture.show_cursor") {
		cfg.Capture.ShowCursor = v.GetBool("capture.show_cursor")
	}
	if v.IsSet("capture.display") {
		cfg.Capture.Display = v.GetString("capture.display")
	}
	if v.IsSet("capture.output") {
		cfg.Capture.Output = v.GetString("capture.output")
	}
	if v.IsSet("server_port") && v.GetInt("server_port") > 0 {
		cfg.ServerPort = v.GetInt("server_port")
	}
	if v.IsSet("stream.fps") && v.GetInt("stream.fps") > 0 {
		cfg.Stream.FPS = v.GetInt("stream.fps")
	}
	if v.IsSet("log_level") && v.GetString("log_level") != "" {
		cfg.LogLevel = v.GetString("log_level")
	}
	return cfg.Validate()
}

func componentLogger(component string) zerolog.Logger {
	return logger.WithComponent(log, component)
}
