package gif

import (
	"fmt"
	"math"
	"time"
)

// Preset is a GIF quality tier
type Preset struct {
	Name string
	FPS  int
	// Quality is the palette sample factor: one pixel in Quality feeds
	// the median cut, so lower is better. Presets at 10 or below are
	// dithered.
	Quality int
	Scale   float64
	// MaxDuration is the longest source the tier is picked for automatically.
	MaxDuration time.Duration
}

var (
	Premium  = Preset{Name: "premium", FPS: 20, Quality: 5, Scale: 1, MaxDuration: 30 * time.Second}
	Standard = Preset{Name: "standard", FPS: 15, Quality: 10, Scale: 1, MaxDuration: 45 * time.Second}
	Compact  = Preset{Name: "compact", FPS: 12, Quality: 15, Scale: 0.85}
)

// Presets lists the tiers from best to smallest.
var Presets = []Preset{Premium, Standard, Compact}

// SelectPreset picks the tier for a source duration.
func SelectPreset(d time.Duration) Preset {
	switch {
	case d <= Premium.MaxDuration:
		return Premium
	case d <= Standard.MaxDuration:
		return Standard
	default:
		return Compact
	}
}

// PresetByName resolves a caller override. An empty name selects by duration.
func PresetByName(name string, d time.Duration) (Preset, error) {
	if name == "" {
		return SelectPreset(d), nil
	}
	for _, p := range Presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("unknown gif preset %q", name)
}

// TickDelay is the per-tick frame delay, 1000/fps ms.
func (p Preset) TickDelay() time.Duration {
	return time.Second / time.Duration(p.FPS)
}

// TickCentiseconds is the tick delay in GIF units, rounded.
func (p Preset) TickCentiseconds() int {
	return int(math.Max(1, math.Round(100/float64(p.FPS))))
}

// Dithered reports whether frames are quantized with Floyd-Steinberg.
func (p Preset) Dithered() bool {
	return p.Quality <= 10
}
