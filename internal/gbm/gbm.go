// Package gbm allocates linear GPU buffer objects on a DRM render node.
package gbm

import "errors"

var (
	// ErrUnsupported is returned when the binary was built without libgbm
	ErrUnsupported = errors.New("gbm: built without cgo support")
	// ErrCreateDevice is returned when gbm_create_device fails
	ErrCreateDevice = errors.New("gbm: failed to create device")
	// ErrCreateBO is returned when gbm_bo_create fails
	ErrCreateBO = errors.New("gbm: failed to create buffer object")
	// ErrExportFd is returned when gbm_bo_get_fd fails
	ErrExportFd = errors.New("gbm: failed to export buffer fd")
	// ErrClosed is returned when a destroyed device or BO is used
	ErrClosed = errors.New("gbm: use after destroy")
)
