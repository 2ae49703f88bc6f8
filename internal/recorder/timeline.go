package recorder

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

const (
	rowHeight  = 24
	rowGap     = 4
	swatchSize = rowHeight
	margin     = 4
)

// timelineWidth returns the strip width in pixels, at least one per tick
// group and never zero.
func (rec *Recording) timelineWidth() int {
	w := int(math.Ceil(rec.Duration().Seconds() * float64(rec.cfg.PixelsPerS)))
	if w < 1 {
		w = 1
	}
	return w
}

// WriteTimelinePNG draws one row per wand: its assigned color as a swatch
// labelled with the wand id, then the LED color over time with the rumble
// level as a white bar rising from the bottom of the row.
func (rec *Recording) WriteTimelinePNG(path string) error {
	n := rec.Len()
	if n == 0 {
		return ErrEmpty
	}

	strip := rec.timelineWidth()
	width := margin*3 + swatchSize + strip
	height := margin*2 + len(rec.Tracks)*(rowHeight+rowGap) - rowGap

	dc := gg.NewContext(width, height)
	dc.SetColor(color.RGBA{12, 12, 28, 255})
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()
	dc.SetFontFace(basicfont.Face7x13)

	left := float64(margin*2 + swatchSize)
	for row, track := range rec.Tracks {
		top := float64(margin + row*(rowHeight+rowGap))

		c := rec.Colors[row]
		dc.SetColor(color.RGBA{c[0], c[1], c[2], 255})
		dc.DrawRectangle(margin, top, swatchSize, rowHeight)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(strconv.Itoa(row), margin+swatchSize/2, top+rowHeight/2, 0.5, 0.35)

		for x := 0; x < strip; x++ {
			s := track[x*n/strip]
			dc.SetColor(color.RGBA{s.LED[0], s.LED[1], s.LED[2], 255})
			dc.DrawRectangle(left+float64(x), top, 1, rowHeight)
			dc.Fill()

			if s.Rumble > 0 {
				h := math.Min(s.Rumble, 1) * rowHeight / 2
				dc.SetColor(color.RGBA{255, 255, 255, 160})
				dc.DrawRectangle(left+float64(x), top+rowHeight-h, 1, h)
				dc.Fill()
			}
		}
	}

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save timeline: %w", err)
	}
	return nil
}
