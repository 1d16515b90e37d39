package imaging

import (
	"image"
	"image/color"
	"sort"
)

// quantStep groups channel values into buckets of this width.
const quantStep = 16

// ColorFrequency represents a quantized color and how much of a region it covers.
type ColorFrequency struct {
	Color      color.NRGBA `json:"-"`
	Pixels     int         `json:"pixels"`
	Percentage float64     `json:"percentage"`
}

// DominantColors returns up to count of the most common colors in region.
//
// Channels are quantized to multiples of 16 so near-identical colors group
// together; each bucket is reported by the average of its members so the
// returned color is one that actually appears in the image. Fully
// transparent pixels are ignored. Ties are broken by channel order, which
// keeps the output deterministic.
func (c *Canvas) DominantColors(region image.Rectangle, count int) []ColorFrequency {
	region = region.Canon().Intersect(c.pix.Rect)
	if region.Empty() || count <= 0 {
		return nil
	}

	type bucket struct {
		n       int
		r, g, b int
	}
	buckets := make(map[uint32]*bucket)
	total := 0

	for y := region.Min.Y; y < region.Max.Y; y++ {
		for x := region.Min.X; x < region.Max.X; x++ {
			px := color.NRGBAModel.Convert(c.pix.RGBAAt(x, y)).(color.NRGBA)
			if px.A == 0 {
				continue
			}
			key := uint32(px.R/quantStep)<<16 | uint32(px.G/quantStep)<<8 | uint32(px.B/quantStep)
			bk, ok := buckets[key]
			if !ok {
				bk = &bucket{}
				buckets[key] = bk
			}
			bk.n++
			bk.r += int(px.R)
			bk.g += int(px.G)
			bk.b += int(px.B)
			total++
		}
	}
	if total == 0 {
		return nil
	}

	keys := make([]uint32, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, nj := buckets[keys[i]].n, buckets[keys[j]].n
		if ni != nj {
			return ni > nj
		}
		return keys[i] < keys[j]
	})

	if len(keys) > count {
		keys = keys[:count]
	}

	out := make([]ColorFrequency, 0, len(keys))
	for _, k := range keys {
		bk := buckets[k]
		out = append(out, ColorFrequency{
			Color: color.NRGBA{
				R: uint8((bk.r + bk.n/2) / bk.n),
				G: uint8((bk.g + bk.n/2) / bk.n),
				B: uint8((bk.b + bk.n/2) / bk.n),
				A: 255,
			},
			Pixels:     bk.n,
			Percentage: float64(bk.n) * 100 / float64(total),
		})
	}
	return out
}

// Darkest returns the entry with the lowest luma, or false when empty.
func Darkest(colors []ColorFrequency) (ColorFrequency, bool) {
	if len(colors) == 0 {
		return ColorFrequency{}, false
	}
	best := colors[0]
	for _, cf := range colors[1:] {
		if luma(cf.Color) < luma(best.Color) {
			best = cf
		}
	}
	return best, true
}

func luma(c color.NRGBA) int {
	return 299*int(c.R) + 587*int(c.G) + 114*int(c.B)
}
