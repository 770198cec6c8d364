// Package drm discovers DRM render nodes through sysfs.
package drm

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	// DefaultSysRoot is where the kernel lists DRM minors
	DefaultSysRoot = "/sys/class/drm"
	// DefaultDevRoot holds the device nodes
	DefaultDevRoot = "/dev/dri"

	renderPrefix = "renderD"
	cardPrefix   = "card"
)

// ErrNoRenderDevice is returned when no device exposes a render node
var ErrNoRenderDevice = errors.New("no DRM render node found")

// Device is one DRM minor
type Device struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Minor  int    `json:"minor"`
	Render bool   `json:"render"`
	Driver string `json:"driver,omitempty"`
}

// Finder enumerates devices below SysRoot and resolves nodes below DevRoot
type Finder struct {
	Fs      afero.Fs
	SysRoot string
	DevRoot string
}

// NewFinder returns a Finder over the real filesystem. An empty sysRoot
// selects DefaultSysRoot.
func NewFinder(sysRoot string) *Finder {
	if sysRoot == "" {
		sysRoot = DefaultSysRoot
	}
	return &Finder{
		Fs:      afero.NewOsFs(),
		SysRoot: sysRoot,
		DevRoot: DefaultDevRoot,
	}
}

// Devices lists card and render minors ordered by minor number
func (f *Finder) Devices() ([]Device, error) {
	entries, err := afero.ReadDir(f.Fs, f.SysRoot)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.SysRoot, err)
	}

	var devices []Device
	for _, entry := range entries {
		name := entry.Name()

		var prefix string
		switch {
		case strings.HasPrefix(name, renderPrefix):
			prefix = renderPrefix
		case strings.HasPrefix(name, cardPrefix):
			prefix = cardPrefix
		default:
			continue
		}

		// card0-DP-1 style connector entries are not minors
		minor, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}

		devices = append(devices, Device{
			Name:   name,
			Path:   filepath.Join(f.DevRoot, name),
			Minor:  minor,
			Render: prefix == renderPrefix,
			Driver: f.driver(name),
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Minor < devices[j].Minor
	})
	return devices, nil
}

// FindRenderNode returns the device node path of the first render-capable
// minor whose node exists.
func (f *Finder) FindRenderNode() (string, error) {
	devices, err := f.Devices()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoRenderDevice, err)
	}

	for _, dev := range devices {
		if !dev.Render {
			continue
		}
		if _, err := f.Fs.Stat(dev.Path); err != nil {
			continue
		}
		return dev.Path, nil
	}
	return "", ErrNoRenderDevice
}

// driver reads DRIVER= from the minor's device uevent, if present
func (f *Finder) driver(name string) string {
	file, err := f.Fs.Open(filepath.Join(f.SysRoot, name, "device", "uevent"))
	if err != nil {
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if v, ok := strings.CutPrefix(scanner.Text(), "DRIVER="); ok {
			return v
		}
	}
	return ""
}

// FindRenderNode searches the real filesystem under sysRoot
func FindRenderNode(sysRoot string) (string, error) {
	return NewFinder(sysRoot).FindRenderNode()
}
