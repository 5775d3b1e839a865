// Package placeholder draws the stand-in image stored for records that
// come without a receipt photo.
package placeholder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	width      = 400
	height     = 100
	margin     = 10
	lineHeight = 16
)

var (
	background = color.RGBA{R: 80, G: 80, B: 80, A: 255}
	foreground = color.White
)

// Renderer produces JPEG placeholders. The zero value is ready to use.
type Renderer struct {
	// Title is the first line; defaults to "No receipt image".
	Title string
}

// Render draws the title, the note and the formatted amount.
func (r Renderer) Render(note, amount string) ([]byte, error) {
	title := r.Title
	if title == "" {
		title = "No receipt image"
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(foreground),
		Face: basicfont.Face7x13,
	}

	lines := []string{title, ""}
	lines = append(lines, wrap(note, maxChars())...)
	lines = append(lines, amount)

	y := margin + basicfont.Face7x13.Ascent
	for _, line := range lines {
		if y > height-margin {
			break
		}
		d.Dot = fixed.P(margin, y)
		d.DrawString(line)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encoding placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

func maxChars() int {
	return (width - 2*margin) / basicfont.Face7x13.Advance
}

// wrap splits s into lines of at most n runes, breaking on spaces where it can.
// basicfont only covers ASCII; other runes render as boxes.
func wrap(s string, n int) []string {
	var lines []string
	var cur strings.Builder
	curLen := 0
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > n {
			if curLen > 0 {
				lines = append(lines, cur.String())
				cur.Reset()
				curLen = 0
			}
			lines = append(lines, string(w[:n]))
			w = w[n:]
		}
		need := len(w)
		if curLen > 0 {
			need++
		}
		if curLen+need > n {
			lines = append(lines, cur.String())
			cur.Reset()
			curLen = 0
			need = len(w)
		}
		if curLen > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(string(w))
		curLen += need
	}
	if curLen > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
