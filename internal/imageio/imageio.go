// Package imageio validates and decodes uploaded images. Format detection is
// magic-byte based so a mislabelled multipart part cannot smuggle an
// unsupported payload past validation.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
	xdraw "golang.org/x/image/draw"

	"motiond/internal/domain"
)

// Supported input formats.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
	FormatHEIC = "heic"
)

// Info describes a sniffed upload. Width/Height are zero when the format is
// recognized but not decodable in-process (HEIC).
type Info struct {
	Format string
	Width  int
	Height int
}

var heicBrands = map[string]bool{
	"heic": true, "heix": true, "hevc": true, "hevx": true,
	"heim": true, "heis": true, "mif1": true, "msf1": true,
}

// Sniff identifies the image format from its leading bytes and, where the
// codec is available, its pixel dimensions.
func Sniff(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return sniffConfig(data, FormatJPEG)
	case len(data) >= 8 && bytes.Equal(data[:8], []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return sniffConfig(data, FormatPNG)
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return sniffWebP(data)
	case isHEIC(data):
		// Dimensions would need an ispe box walk; callers treat 0x0 as
		// unknown, matching how uploads without EXIF behave.
		return Info{Format: FormatHEIC}, nil
	default:
		return Info{}, fmt.Errorf("%w: unsupported image format", domain.ErrInvalidInput)
	}
}

func sniffConfig(data []byte, format string) (Info, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: corrupt %s image: %v", domain.ErrInvalidInput, format, err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

func sniffWebP(data []byte) (Info, error) {
	dec, err := decoder.NewDecoder(bytes.NewReader(data), &decoder.Options{})
	if err != nil {
		return Info{}, fmt.Errorf("%w: corrupt webp image: %v", domain.ErrInvalidInput, err)
	}
	features := dec.GetFeatures()
	return Info{Format: FormatWebP, Width: features.Width, Height: features.Height}, nil
}

func isHEIC(data []byte) bool {
	// ISO BMFF: size(4) + "ftyp"(4) + major brand(4).
	if len(data) < 12 || !bytes.Equal(data[4:8], []byte("ftyp")) {
		return false
	}
	return heicBrands[string(data[8:12])]
}

// Decode returns the pixel data for formats with an in-process codec. HEIC
// uploads can only be decoded by the inference engine sidecar.
func Decode(data []byte) (image.Image, error) {
	info, err := Sniff(data)
	if err != nil {
		return nil, err
	}
	switch info.Format {
	case FormatJPEG:
		return jpeg.Decode(bytes.NewReader(data))
	case FormatPNG:
		return png.Decode(bytes.NewReader(data))
	case FormatWebP:
		return webp.Decode(bytes.NewReader(data), &decoder.Options{})
	default:
		return nil, fmt.Errorf("no in-process decoder for %s", info.Format)
	}
}

// ResizeMaxSide scales img down so its longest side is at most maxSide,
// preserving aspect ratio. Dimensions are floored to even numbers because
// H.264 yuv420p output requires them. maxSide <= 0 keeps the input size
// (still evened).
func ResizeMaxSide(img image.Image, maxSide int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	longest := w
	if h > longest {
		longest = h
	}
	if maxSide > 0 && longest > maxSide {
		scale := float64(maxSide) / float64(longest)
		w = int(float64(w)*scale + 0.5)
		h = int(float64(h)*scale + 0.5)
	}
	w -= w % 2
	h -= h % 2
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
