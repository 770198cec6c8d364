package wayland

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
)

// Report summarises what a compositor offers for capture
type Report struct {
	ScreencopyVersion uint32       `json:"screencopy_version"`
	Shm               bool         `json:"shm"`
	DmabufVersion     uint32       `json:"dmabuf_version"`
	DmabufFormats     []string     `json:"dmabuf_formats"`
	Outputs           []OutputInfo `json:"outputs"`
	SupportsSHM       bool         `json:"supports_shm"`
	SupportsDMABuf    bool         `json:"supports_dmabuf"`
}

// Probe connects once and reports the capture-relevant globals
func Probe(display string, log zerolog.Logger) (*Report, error) {
	c, err := connect(display, factories{shm: true, dmabuf: true}, log)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	if err := c.roundtrip(); err != nil {
		return nil, fmt.Errorf("%w: roundtrip: %v", capture.ErrConnection, err)
	}

	r := &Report{
		ScreencopyVersion: c.screencopyVersion,
		Shm:               c.shm != nil,
		DmabufVersion:     c.dmabufVersion,
		Outputs:           c.Outputs(),
		SupportsSHM:       c.require(capture.ModeSHM) == nil && len(c.outputs) > 0,
		SupportsDMABuf:    c.require(capture.ModeGPU) == nil && len(c.outputs) > 0,
	}
	for _, f := range c.DmabufFormats() {
		r.DmabufFormats = append(r.DmabufFormats, capture.FormatName(f))
	}
	return r, nil
}
