// Package artifact renders and stores the generated presentation slides.
package artifact

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	errx "github.com/advisor-core/server/internal/core/error"
)

const (
	slideWidth  = 800
	slideHeight = 600

	// The summary model is prompted to stay under this; enforce it anyway.
	maxSlideText = 700

	lineHeight = 16
	sideMargin = 40
)

var slideBackground = color.RGBA{R: 135, G: 206, B: 235, A: 255} // sky blue

// RenderSlide draws the summary text centered on a fixed-size slide and
// returns the encoded PNG.
func RenderSlide(text string) ([]byte, error) {
	text = strings.TrimSpace(cutAtRune(text, maxSlideText))

	img := image.NewRGBA(image.Rect(0, 0, slideWidth, slideHeight))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: slideBackground}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	lines := wrapText(text, face, slideWidth-2*sideMargin)

	blockHeight := len(lines) * lineHeight
	startY := (slideHeight-blockHeight)/2 + lineHeight
	if startY < lineHeight {
		startY = lineHeight
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, line := range lines {
		w := drawer.MeasureString(line).Ceil()
		x := (slideWidth - w) / 2
		if x < sideMargin {
			x = sideMargin
		}
		drawer.Dot = fixed.P(x, startY+i*lineHeight)
		drawer.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errx.WrapArtifact(err)
	}
	return buf.Bytes(), nil
}

// wrapText breaks the text into lines that fit within maxWidth pixels,
// splitting on word boundaries. Words wider than a line are hard-split.
func wrapText(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	measure := func(s string) int {
		return (&font.Drawer{Face: face}).MeasureString(s).Ceil()
	}

	var lines []string
	current := ""
	for _, word := range words {
		for measure(word) > maxWidth && utf8.RuneCountInString(word) > 1 {
			head := cutAtRune(word, len(word)-1)
			for utf8.RuneCountInString(head) > 1 && measure(head) > maxWidth {
				head = cutAtRune(head, len(head)-1)
			}
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			lines = append(lines, head)
			word = word[len(head):]
		}
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if measure(candidate) <= maxWidth {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// cutAtRune caps s at n bytes without splitting a multi-byte rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
