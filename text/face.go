// Package text turns strings into GPU-drawable glyph quad buffers.
//
// Shaping runs through go-text/typesetting's HarfBuzz implementation, so
// kerning and ligature-capable fonts position correctly. Glyph coverage is
// rasterized with golang.org/x/image's opentype renderer into a single
// R8 atlas texture; the layout step emits one textured quad per glyph.
package text

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Face is a parsed font, ready for shaping and rasterization. The same
// underlying data is parsed twice: go-text/typesetting drives shaping,
// x/image's opentype drives coverage rasterization.
//
// A Face is immutable after creation and may be shared.
type Face struct {
	data   []byte
	shaper *font.Font
	raster *opentype.Font
}

// LoadFace reads and parses a TTF/OTF font file.
func LoadFace(path string) (*Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("text: load face: %w", err)
	}
	return ParseFace(data)
}

// ParseFace parses TTF/OTF font data.
func ParseFace(data []byte) (*Face, error) {
	goTextFace, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("text: parse face: %w", err)
	}
	otFont, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("text: parse face: %w", err)
	}
	return &Face{data: data, shaper: goTextFace.Font, raster: otFont}, nil
}

// shapedGlyph is one positioned glyph: pen position in pixels relative to
// the baseline origin, plus the source rune used for coverage lookup.
type shapedGlyph struct {
	r       rune
	x, y    float64
	advance float64
}

// shape runs HarfBuzz shaping at the given pixel size. Single run,
// left-to-right; the caller handles layout beyond pen advancement.
func (f *Face) shape(content string, size float64) []shapedGlyph {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      font.NewFace(f.shaper),
		Size:      fixed.Int26_6(size * 64),
		Script:    language.LookupScript(runes[0]),
		Language:  language.NewLanguage("en"),
	}

	var hb shaping.HarfbuzzShaper
	output := hb.Shape(input)

	result := make([]shapedGlyph, 0, len(output.Glyphs))
	var x float64
	for _, g := range output.Glyphs {
		cluster := g.TextIndex()
		if cluster < 0 || cluster >= len(runes) {
			continue
		}
		adv := fixedToFloat(g.Advance)
		result = append(result, shapedGlyph{
			r:       runes[cluster],
			x:       x + fixedToFloat(g.XOffset),
			y:       fixedToFloat(g.YOffset),
			advance: adv,
		})
		x += adv
	}
	return result
}

// fixedToFloat converts a fixed.Int26_6 value to float64.
func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64.0
}
