package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// decoders are matched against the leading bytes of a file. The tga
// package registers itself with image.Decode under an empty magic string,
// which would claim every image, so the registry is not used.
var decoders = []struct {
	magic  string
	decode func(io.Reader) (image.Image, error)
}{
	{"\x89PNG\r\n\x1a\n", png.Decode},
	{"\xff\xd8", jpeg.Decode},
	{"BM", bmp.Decode},
	{"II*\x00", tiff.Decode},
	{"MM\x00*", tiff.Decode},
	{"RIFF????WEBP", webp.Decode},
}

func sniff(raw []byte) func(io.Reader) (image.Image, error) {
	for _, d := range decoders {
		if len(raw) < len(d.magic) {
			continue
		}
		ok := true
		for i := 0; i < len(d.magic); i++ {
			if d.magic[i] != '?' && d.magic[i] != raw[i] {
				ok = false
				break
			}
		}
		if ok {
			return d.decode
		}
	}
	return nil
}

// LoadTexture reads and decodes an image file (png, jpeg, tga, bmp, tiff,
// webp) and returns it as NRGBA.
func LoadTexture(path string) (*image.NRGBA, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}

	return Decode(raw, path)
}

// Decode decodes an in-memory image. TGA has no magic number, so it is
// picked by the extension of name; every other format is sniffed.
func Decode(raw []byte, name string) (*image.NRGBA, error) {
	decode := tga.Decode
	if !strings.EqualFold(filepath.Ext(name), ".tga") {
		if decode = sniff(raw); decode == nil {
			return nil, fmt.Errorf("texture: decode %s: unknown image format", name)
		}
	}
	img, err := decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", name, err)
	}
	return ToNRGBA(img), nil
}

// ToNRGBA converts any image to NRGBA format with its origin at (0, 0).
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src.(type) {
	case *image.YCbCr, *image.Gray:
		// No alpha
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		for i := 3; i < len(dst.Pix); i += 4 {
			dst.Pix[i] = 255
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
				i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
				dst.Pix[i] = c.R
				dst.Pix[i+1] = c.G
				dst.Pix[i+2] = c.B
				dst.Pix[i+3] = c.A
			}
		}
	}
	return dst
}
