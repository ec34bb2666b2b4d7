// Package quality maps a camera's quality tier to encoder parameters.
package quality

import (
	"fmt"
	"strings"
)

// Known tiers.
const (
	TierHigh   = "high"
	TierMedium = "medium"
	TierLow    = "low"
)

// DefaultTier is used when a camera has no tier configured, and for any
// unknown tier name.
const DefaultTier = TierHigh

// Profile is one row of the encoder table. Faster presets trade compression
// efficiency for encode speed; a higher CRF means stronger compression.
type Profile struct {
	Tier   string `json:"tier"`
	Preset string `json:"preset"`
	CRF    int    `json:"crf"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Resolution formats the target size as WxH.
func (p Profile) Resolution() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

var profiles = map[string]Profile{
	TierHigh:   {Tier: TierHigh, Preset: "veryfast", CRF: 23, Width: 1920, Height: 1080},
	TierMedium: {Tier: TierMedium, Preset: "faster", CRF: 28, Width: 1280, Height: 720},
	TierLow:    {Tier: TierLow, Preset: "ultrafast", CRF: 32, Width: 640, Height: 360},
}

// Resolve returns the profile for tier. Matching is case-insensitive; any
// tier outside high/medium/low resolves to the high profile.
func Resolve(tier string) Profile {
	if p, ok := profiles[strings.ToLower(strings.TrimSpace(tier))]; ok {
		return p
	}
	return profiles[DefaultTier]
}

// Tiers lists the known tiers from best to cheapest.
func Tiers() []string {
	return []string{TierHigh, TierMedium, TierLow}
}
