package artifact

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
)

// TestRenderSlide_Dimensions verifies the output decodes as a PNG of the
// fixed slide size.
func TestRenderSlide_Dimensions(t *testing.T) {
	data, err := RenderSlide("Our platform automates outbound sales.")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, slideWidth, img.Bounds().Dx())
	assert.Equal(t, slideHeight, img.Bounds().Dy())
}

// TestRenderSlide_Background verifies a corner pixel carries the slide
// background color.
func TestRenderSlide_Background(t *testing.T) {
	data, err := RenderSlide("hello")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(135), r>>8)
	assert.Equal(t, uint32(206), g>>8)
	assert.Equal(t, uint32(235), b>>8)
}

// TestRenderSlide_EmptyAndOversized verifies degenerate inputs still render.
func TestRenderSlide_EmptyAndOversized(t *testing.T) {
	_, err := RenderSlide("")
	assert.NoError(t, err)

	_, err = RenderSlide(strings.Repeat("pitch ", 500))
	assert.NoError(t, err)

	// An oversized multi-byte text must be capped on a rune boundary, not
	// mid-character.
	_, err = RenderSlide(strings.Repeat("日本語のピッチ", 100))
	assert.NoError(t, err)
}

// TestCutAtRune verifies the slide text cap never splits a multi-byte rune.
func TestCutAtRune(t *testing.T) {
	assert.Equal(t, "héllo", cutAtRune("héllo", 10))
	assert.Equal(t, "h", cutAtRune("héllo", 2))
	assert.Equal(t, "hé", cutAtRune("héllo", 3))
	assert.True(t, utf8.ValidString(cutAtRune(strings.Repeat("日本語", 100), maxSlideText)))
}

// TestWrapText verifies word wrapping respects the pixel budget and splits
// oversized words instead of looping.
func TestWrapText(t *testing.T) {
	face := basicfont.Face7x13

	lines := wrapText("one two three four five six seven eight nine ten", face, 100)
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.LessOrEqual(t, len(line)*7, 100+7)
	}

	// A single word wider than the line is hard-split, not dropped.
	lines = wrapText(strings.Repeat("x", 60), face, 100)
	assert.Greater(t, len(lines), 1)
	joined := strings.Join(lines, "")
	assert.Equal(t, strings.Repeat("x", 60), joined)

	assert.Equal(t, []string{""}, wrapText("   ", face, 100))
}
