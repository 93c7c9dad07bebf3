package assets

import (
	"fmt"
	"path/filepath"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Fonts is the typeface pair used by every text layer
type Fonts struct {
	Regular *text.FontSource
	Bold    *text.FontSource
}

// Face returns a face of the requested weight and pixel size.
func (f *Fonts) Face(bold bool, size float64) text.Face {
	if bold {
		return f.Bold.Face(size)
	}
	return f.Regular.Face(size)
}

// LoadFonts parses regular.ttf and bold.ttf from dir, or the bundled Go fonts
// when dir is empty.
func LoadFonts(dir string) (*Fonts, error) {
	if dir != "" {
		regular, err := text.NewFontSourceFromFile(filepath.Join(dir, "regular.ttf"))
		if err != nil {
			return nil, fmt.Errorf("failed to load regular font: %w", err)
		}
		bold, err := text.NewFontSourceFromFile(filepath.Join(dir, "bold.ttf"))
		if err != nil {
			return nil, fmt.Errorf("failed to load bold font: %w", err)
		}
		return &Fonts{Regular: regular, Bold: bold}, nil
	}

	regular, err := text.NewFontSource(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse goregular: %w", err)
	}
	bold, err := text.NewFontSource(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gobold: %w", err)
	}
	return &Fonts{Regular: regular, Bold: bold}, nil
}
