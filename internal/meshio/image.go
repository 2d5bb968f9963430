package meshio

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/HugoSmits86/nativewebp"
)

// encodeImage writes img as png or webp.
func encodeImage(w io.Writer, img *image.NRGBA, format string) error {
	if strings.EqualFold(format, "webp") {
		return nativewebp.Encode(w, img, nil)
	}
	return png.Encode(w, img)
}

// writeImage encodes img to path.
func writeImage(path string, img *image.NRGBA, format string) error {
	var buf bytes.Buffer
	if err := encodeImage(&buf, img, format); err != nil {
		return fmt.Errorf("meshio: encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("meshio: write %s: %w", path, err)
	}
	return nil
}
