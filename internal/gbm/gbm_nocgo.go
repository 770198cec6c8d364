//go:build !cgo || !linux

package gbm

// Device is unavailable without cgo
type Device struct{}

// Open always fails without cgo
func Open(path string) (*Device, error) {
	return nil, ErrUnsupported
}

// Path returns an empty string
func (d *Device) Path() string { return "" }

// Backend returns an empty string
func (d *Device) Backend() string { return "" }

// Create always fails without cgo
func (d *Device) Create(width, height, format uint32) (*BO, error) {
	return nil, ErrUnsupported
}

// Close is a no-op
func (d *Device) Close() error { return nil }

// BO is unavailable without cgo
type BO struct{}

func (b *BO) Stride() uint32          { return 0 }
func (b *BO) Offset(plane int) uint32 { return 0 }
func (b *BO) Modifier() uint64        { return 0 }
func (b *BO) ExportFd() (int, error)  { return -1, ErrUnsupported }
func (b *BO) Destroy()                {}
