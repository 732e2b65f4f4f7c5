package ocr

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
)

const (
	// DefaultScale upscales the small Overview font; tesseract misses glyphs under ~20px.
	DefaultScale = 4
	// Padding is the white border added around every pass.
	Padding = 20
)

// Pass is one binarized rendition of a capture. Game text is light on dark, so every
// pass is inverted to black text on white, which is what tesseract expects.
type Pass struct {
	Name  string
	Image *image.Gray
}

// Preprocess upscales img by scale and returns the binarized passes used for
// multi-pass recognition. Word boxes found in a pass map back to img with
// (p - Padding) / scale.
func Preprocess(img image.Image, scale int) []Pass {
	if scale < 1 {
		scale = 1
	}
	b := img.Bounds()
	// Bilinear: bicubic rings around the thin pixel font.
	big := resize.Resize(uint(b.Dx()*scale), uint(b.Dy()*scale), img, resize.Bilinear)

	value := toGray(big, func(r, g, b uint32) uint8 { return uint8(max(r, g, b) >> 8) })
	// Same luma weights as color.GrayModel.
	gray := toGray(big, func(r, g, b uint32) uint8 { return uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 24) })
	fixed := BinarizeInv(gray, 127)

	return []Pass{
		{Name: "value", Image: Pad(BinarizeInv(value, Otsu(value)), Padding)},
		{Name: "gray", Image: Pad(BinarizeInv(gray, Otsu(gray)), Padding)},
		{Name: "fixed", Image: Pad(fixed, Padding)},
		{Name: "thick", Image: Pad(Erode(fixed), Padding)},
	}
}

func toGray(img image.Image, f func(r, g, b uint32) uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = f(r, g, bl)
		}
	}
	return out
}

// Otsu returns the threshold maximizing between-class variance of g's histogram.
func Otsu(g *image.Gray) uint8 {
	var hist [256]int
	b := g.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[(y-b.Min.Y)*g.Stride:]
		for x := 0; x < b.Dx(); x++ {
			hist[row[x]]++
		}
	}

	total := b.Dx() * b.Dy()
	if total == 0 {
		return 127
	}
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}

	var sumB, best float64
	var wB int
	threshold := 0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = t
		}
	}
	return uint8(threshold)
}

// BinarizeInv maps pixels brighter than t to black and the rest to white.
func BinarizeInv(g *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if v > t {
			out.Pix[i] = 0
		} else {
			out.Pix[i] = 255
		}
	}
	return out
}

// Erode applies a 2x2 minimum filter, thickening black strokes by one pixel.
func Erode(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := g.GrayAt(x, y).Y
			if x > b.Min.X {
				m = min(m, g.GrayAt(x-1, y).Y)
			}
			if y > b.Min.Y {
				m = min(m, g.GrayAt(x, y-1).Y)
			}
			if x > b.Min.X && y > b.Min.Y {
				m = min(m, g.GrayAt(x-1, y-1).Y)
			}
			out.SetGray(x, y, color.Gray{Y: m})
		}
	}
	return out
}

// Pad surrounds g with a white border of p pixels. The result starts at (0,0).
func Pad(g *image.Gray, p int) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()+2*p, b.Dy()+2*p))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(p, p, p+b.Dx(), p+b.Dy()), g, b.Min, draw.Src)
	return out
}
