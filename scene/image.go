package scene

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"render-core/resource"
)

// DecodeImage decodes a png, jpeg, bmp, tiff or webp image into RGBA8
// texture data, top row first.
func DecodeImage(r io.Reader) (resource.TextureData, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return resource.TextureData{}, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Empty() {
		return resource.TextureData{}, fmt.Errorf("decode %s image: empty", format)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != 4*b.Dx() || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}
	return resource.TextureData{Width: b.Dx(), Height: b.Dy(), Pixels: rgba.Pix}, nil
}

func LoadImage(path string) (resource.TextureData, error) {
	f, err := os.Open(path)
	if err != nil {
		return resource.TextureData{}, err
	}
	defer f.Close()

	data, err := DecodeImage(bufio.NewReader(f))
	if err != nil {
		return resource.TextureData{}, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
