package domain

import "fmt"

// Preset is a named resolution/quality tier. MaxOutputSide bounds the longest
// side of the rendered video; zero means the input resolution is kept.
// MaxFallbackInputSide bounds the input image on the depth-parallax path,
// which has to fit the whole working set in host or MPS memory.
type Preset struct {
	Name                 string `json:"name"`
	MaxOutputSide        int    `json:"max_output_side"`
	MaxFallbackInputSide int    `json:"max_fallback_input_side"`
}

// The preset ladder, ordered by decreasing resolution. The values mirror the
// render-quality options exposed to users.
var presets = []Preset{
	{Name: "Full", MaxOutputSide: 0, MaxFallbackInputSide: 2048},
	{Name: "High", MaxOutputSide: 1920, MaxFallbackInputSide: 1792},
	{Name: "Balanced", MaxOutputSide: 1536, MaxFallbackInputSide: 1536},
	{Name: "Medium", MaxOutputSide: 1280, MaxFallbackInputSide: 1280},
	{Name: "Social", MaxOutputSide: 960, MaxFallbackInputSide: 960},
	{Name: "Small", MaxOutputSide: 720, MaxFallbackInputSide: 720},
}

var presetByName = func() map[string]Preset {
	m := make(map[string]Preset, len(presets))
	for _, p := range presets {
		m[p.Name] = p
	}
	return m
}()

// ResolvePreset looks up a preset by its canonical name. Unknown names fail
// with ErrInvalidPreset. The returned value is a copy; callers cannot mutate
// the table.
func ResolvePreset(name string) (Preset, error) {
	p, ok := presetByName[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrInvalidPreset, name)
	}
	return p, nil
}

// Presets returns the preset ladder in resolution order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

// DefaultPresetName is used when a submission omits the preset field.
const DefaultPresetName = "Balanced"
