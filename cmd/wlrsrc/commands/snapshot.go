package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/wlrsrc/internal/output"
)

var (
	snapshotOut    string
	snapshotFormat string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture a single frame to an image file",
	Long: `Connect to the compositor, capture exactly one frame and write it as an
image. The format is taken from --format or from the file extension.`,
	Example: `  # Save the current output as PNG
  wlrsrc snapshot -o screen.png

  # Capture through a dma-buf without the cursor
  wlrsrc snapshot -o screen.jpg --backend dmabuf --show-cursor=false

  # Write TIFF to stdout
  wlrsrc snapshot -o - --format tiff > screen.tiff`,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "output file, - for stdout")
	snapshotCmd.Flags().StringVarP(&snapshotFormat, "format", "f", "", "image format (png, jpeg, bmp, tiff)")
	snapshotCmd.MarkFlagRequired("out")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format := output.FormatForPath(snapshotOut)
	if snapshotFormat != "" {
		if format, err = output.ParseImageFormat(snapshotFormat); err != nil {
			return err
		}
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	defer engine.Stop()

	frame, err := engine.ProduceFrame()
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	defer frame.Close()

	img, err := output.FrameImage(frame)
	if err != nil {
		return err
	}

	w := os.Stdout
	if snapshotOut != "-" {
		f, err := os.Create(snapshotOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", snapshotOut, err)
		}
		defer f.Close()
		w = f
	}

	if err := output.Encode(w, img, format, cfg.Stream.JPEGQuality); err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}

	log.Info().
		Str("file", snapshotOut).
		Str("format", string(format)).
		Uint32("width", frame.Width).
		Uint32("height", frame.Height).
		Msg("Snapshot written")
	return nil
}
