package output

import (
	"fmt"
	"image"

	"github.com/bryanchriswhite/wlrsrc/internal/capture"
)

// FrameImage converts a captured frame into an RGBA image. Padding bytes
// and the X channel are dropped; alpha is always opaque.
func FrameImage(frame *capture.Frame) (*image.RGBA, error) {
	pixels, release, err := frame.Pixels()
	if err != nil {
		return nil, err
	}
	defer release()

	w, h, stride := int(frame.Width), int(frame.Height), int(frame.Stride)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty frame %dx%d", w, h)
	}
	bpp := int(capture.BytesPerPixel(frame.Format))
	if stride < w*bpp || len(pixels) < stride*(h-1)+w*bpp {
		return nil, fmt.Errorf("frame %dx%d stride %d does not fit %d bytes", w, h, stride, len(pixels))
	}

	// byte offsets of R, G and B within one pixel
	var r, g, b int
	switch capture.Fourcc(frame.Format) {
	case capture.FourccXRGB8888, capture.FourccARGB8888, capture.FourccRGB888:
		r, g, b = 2, 1, 0
	case capture.FourccXBGR8888, capture.FourccABGR8888, capture.FourccBGR888:
		r, g, b = 0, 1, 2
	default:
		return nil, fmt.Errorf("unsupported pixel format %s", capture.FormatName(frame.Format))
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := pixels[y*stride:]
		dst := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			s, d := x*bpp, x*4
			dst[d+0] = src[s+r]
			dst[d+1] = src[s+g]
			dst[d+2] = src[s+b]
			dst[d+3] = 0xff
		}
	}
	return img, nil
}
