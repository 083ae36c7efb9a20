package captcha

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Pipeline constants. The order of the steps matters as much as the values.
const (
	ContrastFactor   = 3.0
	BrightnessFactor = 1.2
	UpscaleFactor    = 4
	Threshold        = 128 // luma below → black, at or above → white
)

// Preprocess turns a raw captcha image into a high-contrast, upscaled,
// binarized PNG: full colour, contrast ×3, brightness ×1.2, 4× bilinear
// upscale, grayscale, threshold at 128.
func Preprocess(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("captcha: decode: %w", err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("captcha: empty image")
	}

	img := toOpaque(src)
	enhanceContrast(img, ContrastFactor)
	enhanceBrightness(img, BrightnessFactor)

	up := image.NewNRGBA(image.Rect(0, 0, b.Dx()*UpscaleFactor, b.Dy()*UpscaleFactor))
	draw.BiLinear.Scale(up, up.Bounds(), img, img.Bounds(), draw.Src, nil)

	gray := toLuma(up)
	binarize(gray, Threshold)

	var buf bytes.Buffer
	if err := png.Encode(&buf, gray); err != nil {
		return nil, fmt.Errorf("captcha: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// toOpaque copies src into an origin-anchored NRGBA, dropping alpha rather
// than compositing it.
func toOpaque(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			c.A = 0xff
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return dst
}

// luma is ITU-R 601-2 in 16-bit fixed point, rounded.
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}

// enhanceContrast blends each channel away from the mean luma by factor.
func enhanceContrast(img *image.NRGBA, factor float64) {
	var sum, n uint64
	for i := 0; i+3 < len(img.Pix); i += 4 {
		sum += uint64(luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2]))
		n++
	}
	if n == 0 {
		return
	}
	mean := float64(int(float64(sum)/float64(n) + 0.5))
	for i := 0; i+3 < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			img.Pix[i+c] = clamp(mean + factor*(float64(img.Pix[i+c])-mean))
		}
	}
}

// enhanceBrightness blends each channel away from black by factor.
func enhanceBrightness(img *image.NRGBA, factor float64) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			img.Pix[i+c] = clamp(factor * float64(img.Pix[i+c]))
		}
	}
}

func toLuma(img *image.NRGBA) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			gray.SetGray(x, y, color.Gray{Y: luma(img.Pix[i], img.Pix[i+1], img.Pix[i+2])})
		}
	}
	return gray
}

func binarize(img *image.Gray, threshold uint8) {
	for i, v := range img.Pix {
		if v < threshold {
			img.Pix[i] = 0
		} else {
			img.Pix[i] = 0xff
		}
	}
}

func clamp(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}
