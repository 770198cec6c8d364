package commands

import (
	"github.com/bryanchriswhite/wlrsrc/internal/capture"
	"github.com/bryanchriswhite/wlrsrc/internal/config"
	"github.com/bryanchriswhite/wlrsrc/internal/drm"
	"github.com/bryanchriswhite/wlrsrc/internal/logger"
	"github.com/bryanchriswhite/wlrsrc/internal/wayland"
)

// newEngine wires the capture engine to the compositor and render node
// named by cfg.
func newEngine(cfg *config.Config) (*capture.Engine, error) {
	mode, err := capture.ParseMode(cfg.Capture.Backend)
	if err != nil {
		return nil, err
	}

	dialer := wayland.NewDialer(wayland.Options{
		Display: cfg.Capture.Display,
		Output:  cfg.Capture.Output,
	}, logger.WithField(componentLogger("wayland"), "backend", mode.String()))

	finder := drm.NewFinder(cfg.Capture.DRMRoot)

	return capture.NewEngine(dialer, capture.Options{
		Mode:           mode,
		ShowCursor:     cfg.Capture.ShowCursor,
		FindRenderNode: finder.FindRenderNode,
	}, componentLogger("capture")), nil
}
