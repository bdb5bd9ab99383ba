package imageinfo

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnsupported is returned for files no registered decoder recognizes.
var ErrUnsupported = errors.New("unsupported image format")

// Info is the header-level description of an image file.
type Info struct {
	Format string
	Width  int
	Height int
}

// Reader reads image headers from disk.
type Reader struct{}

// NewReader returns a Reader.
func NewReader() Reader {
	return Reader{}
}

// Read returns the format name ("jpeg", "png", "gif", "webp", "bmp") and the
// dimensions of the image at path.
func (Reader) Read(path string) (string, int, int, error) {
	info, err := ReadFile(path)
	if err != nil {
		return "", 0, 0, err
	}
	return info.Format, info.Width, info.Height, nil
}

// ReadFile is Read returning an Info.
func ReadFile(path string) (Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(file))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
		}
		return Info{}, fmt.Errorf("decode image header %s: %w", path, err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}
