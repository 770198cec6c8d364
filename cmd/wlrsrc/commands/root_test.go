package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/bryanchriswhite/wlrsrc/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	v := viper.New()
	v.Set("capture.backend", "dmabuf")
	v.Set("capture.show_cursor", false)
	v.Set("capture.output", "DP-1")
	v.Set("server_port", 9090)

	cfg := config.Defaults()
	if err := applyOverrides(cfg, v); err != nil {
		t.Fatalf("applyOverrides: %v", err)
	}
	if cfg.Capture.Backend != "dmabuf" {
		t.Errorf("backend = %q, want dmabuf", cfg.Capture.Backend)
	}
	if cfg.Capture.ShowCursor {
		t.Error("show_cursor override ignored")
	}
	if cfg.Capture.Output != "DP-1" {
		t.Errorf("output = %q, want DP-1", cfg.Capture.Output)
	}
	if cfg.ServerPort != 9090 {
		t.Errorf("port = %d, want 9090", cfg.ServerPort)
	}
	if cfg.Stream.FPS != 30 {
		t.Errorf("fps = %d, want untouched default 30", cfg.Stream.FPS)
	}
}

func TestApplyOverridesValidates(t *testing.T) {
	v := viper.New()
	v.Set("capture.backend", "vulkan")

	if err := applyOverrides(config.Defaults(), v); err == nil {
		t.Fatal("expected invalid backend to be rejected")
	}
}

func TestConfigSetGet(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "config.yaml")
	defer func() { cfgFile = "" }()

	var out bytes.Buffer
	configSetCmd.SetOut(&out)
	if err := runConfigSet(configSetCmd, []string{"capture.show_cursor", "false"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	out.Reset()
	configGetCmd.SetOut(&out)
	if err := runConfigGet(configGetCmd, []string{"capture.show_cursor"}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "false" {
		t.Errorf("get = %q, want false", got)
	}

	if err := runConfigSet(configSetCmd, []string{"stream.fps", "fast"}); err == nil {
		t.Error("expected non-numeric fps to be rejected")
	}
	if err := runConfigGet(configGetCmd, []string{"nope"}); err == nil {
		t.Error("expected unknown key to fail")
	}
}
