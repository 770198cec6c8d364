package capture

import "fmt"

// wl_shm reserves 0 and 1 for ARGB8888 and XRGB8888; every other
// wl_shm format is the DRM fourcc code.
const (
	ShmFormatARGB8888 uint32 = 0
	ShmFormatXRGB8888 uint32 = 1
)

// DRM fourcc codes of the 32-bit layouts compositors announce
const (
	FourccARGB8888 uint32 = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
	FourccXRGB8888 uint32 = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
	FourccABGR8888 uint32 = 'A' | 'B'<<8 | '2'<<16 | '4'<<24
	FourccXBGR8888 uint32 = 'X' | 'B'<<8 | '2'<<16 | '4'<<24
	FourccRGB888   uint32 = 'R' | 'G'<<8 | '2'<<16 | '4'<<24
	FourccBGR888   uint32 = 'B' | 'G'<<8 | '2'<<16 | '4'<<24
)

// Fourcc normalises a wl_shm format code to its DRM fourcc
func Fourcc(shmFormat uint32) uint32 {
	switch shmFormat {
	case ShmFormatARGB8888:
		return FourccARGB8888
	case ShmFormatXRGB8888:
		return FourccXRGB8888
	default:
		return shmFormat
	}
}

// BytesPerPixel returns the pixel size of a wl_shm or fourcc format.
// Unknown formats are assumed to be 32-bit.
func BytesPerPixel(format uint32) uint32 {
	switch Fourcc(format) {
	case FourccRGB888, FourccBGR888:
		return 3
	default:
		return 4
	}
}

// FormatName prints a format as its fourcc characters
func FormatName(format uint32) string {
	f := Fourcc(format)
	b := []byte{byte(f), byte(f >> 8), byte(f >> 16), byte(f >> 24)}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("%#08x", f)
		}
	}
	return string(b)
}
