// Package tier maps solved.ac difficulty ranks to display names and
// validates the ranges accepted by team recommendation settings.
package tier

import "fmt"

// names covers the full solved.ac ladder, rank 1 (Bronze V) through
// rank 30 (Ruby I). Recommendation settings only accept 1..20.
var names = []string{
	"Bronze V", "Bronze IV", "Bronze III", "Bronze II", "Bronze I",
	"Silver V", "Silver IV", "Silver III", "Silver II", "Silver I",
	"Gold V", "Gold IV", "Gold III", "Gold II", "Gold I",
	"Platinum V", "Platinum IV", "Platinum III", "Platinum II", "Platinum I",
	"Diamond V", "Diamond IV", "Diamond III", "Diamond II", "Diamond I",
	"Ruby V", "Ruby IV", "Ruby III", "Ruby II", "Ruby I",
}

// Bounds for the custom range in recommendation settings (Bronze V..Platinum I).
const (
	MinSettingsLevel = 1
	MaxSettingsLevel = 20
)

// Name returns the tier name for a rank, or "Unknown" when out of range.
func Name(level int) string {
	if level < 1 || level > len(names) {
		return "Unknown"
	}
	return names[level-1]
}

// Group returns the tier group ("Bronze".."Ruby") for a rank.
func Group(level int) string {
	switch {
	case level < 1 || level > 30:
		return "Unknown"
	case level <= 5:
		return "Bronze"
	case level <= 10:
		return "Silver"
	case level <= 15:
		return "Gold"
	case level <= 20:
		return "Platinum"
	case level <= 25:
		return "Diamond"
	default:
		return "Ruby"
	}
}

// ValidateRange checks a custom min/max pair for recommendation settings.
func ValidateRange(min, max int) error {
	if min < MinSettingsLevel || min > MaxSettingsLevel {
		return fmt.Errorf("min level %d out of range %d..%d", min, MinSettingsLevel, MaxSettingsLevel)
	}
	if max < MinSettingsLevel || max > MaxSettingsLevel {
		return fmt.Errorf("max level %d out of range %d..%d", max, MinSettingsLevel, MaxSettingsLevel)
	}
	if min > max {
		return fmt.Errorf("min level %d above max level %d", min, max)
	}
	return nil
}

// Preset is a named difficulty band for recommendation settings.
type Preset string

const (
	PresetEasy   Preset = "EASY"
	PresetNormal Preset = "NORMAL"
	PresetHard   Preset = "HARD"
	PresetCustom Preset = "CUSTOM"
)

// ParsePreset parses a preset name, case-sensitively matching the wire form.
func ParsePreset(s string) (Preset, error) {
	switch Preset(s) {
	case PresetEasy, PresetNormal, PresetHard, PresetCustom:
		return Preset(s), nil
	}
	return "", fmt.Errorf("unknown difficulty preset %q", s)
}
