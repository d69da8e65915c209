package evidence

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sort"
	"time"

	"github.com/nfnt/resize"
)

// Options configures GIF encoding
type Options struct {
	FrameDelay time.Duration
	MaxWidth   uint
}

// DefaultOptions shows each frame for two seconds at up to 800px wide.
func DefaultOptions() Options {
	return Options{FrameDelay: 2 * time.Second, MaxWidth: 800}
}

// Encode writes frames to w as a looping animated GIF. Frames wider than
// MaxWidth are scaled down keeping their aspect ratio.
func Encode(w io.Writer, frames []image.Image, opts Options) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}

	// GIF delays are in 100ths of a second
	delay := int(opts.FrameDelay / (10 * time.Millisecond))
	if delay <= 0 {
		delay = 100
	}

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}

	palette := generatePalette(frames[0])

	for i, frame := range frames {
		scaled := scale(frame, opts.MaxWidth)
		paletted := image.NewPaletted(scaled.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, scaled.Bounds(), scaled, scaled.Bounds().Min)

		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	return gif.EncodeAll(w, g)
}

// WriteFile encodes frames to path and returns the file size.
func WriteFile(path string, frames []image.Image, opts Options) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := Encode(f, frames, opts); err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func scale(img image.Image, maxWidth uint) image.Image {
	bounds := img.Bounds()
	if maxWidth == 0 || uint(bounds.Dx()) <= maxWidth {
		return img
	}
	// Zero height keeps the aspect ratio.
	return resize.Resize(maxWidth, 0, img, resize.Lanczos3)
}

// generatePalette builds a 256-color palette from the most frequent sampled
// colors of img.
func generatePalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	colorMap := make(map[color.RGBA]int)

	const step = 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			colorMap[color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}]++
		}
	}

	colors := make([]color.RGBA, 0, len(colorMap))
	for c := range colorMap {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if colorMap[colors[i]] != colorMap[colors[j]] {
			return colorMap[colors[i]] > colorMap[colors[j]]
		}
		return colorKey(colors[i]) < colorKey(colors[j])
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{0, 0, 0, 0})
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i])
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}

func colorKey(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
