package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/wlrsrc/internal/drm"
	"github.com/bryanchriswhite/wlrsrc/internal/wayland"
)

var probeFormat string

// probeReport is what probe prints
type probeReport struct {
	Compositor *wayland.Report `json:"compositor" yaml:"compositor"`
	Devices    []drm.Device    `json:"devices" yaml:"devices"`
	RenderNode string          `json:"render_node" yaml:"render_node"`
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report what the compositor and GPU offer for capture",
	Long: `List the screencopy, shared-memory and linux-dmabuf globals advertised by
the compositor, its outputs and the DRM devices usable for dma-buf capture.`,
	Example: `  # Probe the current session
  wlrsrc probe

  # Probe another compositor and print JSON
  wlrsrc probe --display wayland-1 --format json`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVarP(&probeFormat, "format", "f", "yaml", "output format (yaml or json)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report, err := wayland.Probe(cfg.Capture.Display, componentLogger("wayland"))
	if err != nil {
		return err
	}

	out := probeReport{Compositor: report}
	finder := drm.NewFinder(cfg.Capture.DRMRoot)
	if out.Devices, err = finder.Devices(); err != nil {
		log.Warn().Err(err).Msg("Failed to list DRM devices")
	}
	node, err := finder.FindRenderNode()
	switch {
	case err == nil:
		out.RenderNode = node
	case errors.Is(err, drm.ErrNoRenderDevice):
	default:
		log.Warn().Err(err).Msg("Failed to resolve render node")
	}

	return printReport(out, probeFormat)
}

func printReport(v any, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", format)
	}
}
