package wire

import "fmt"

// Generation is a coarse device-protocol version derived from a ReadInfo
// response's firmware field (spec.md §6).
type Generation int

const (
	GenUnknown Generation = iota
	Gen1
	Gen1Ad
	Gen1Plus
	Gen2
)

func (g Generation) String() string {
	switch g {
	case Gen1:
		return "Gen1"
	case Gen1Ad:
		return "Gen1Ad"
	case Gen1Plus:
		return "Gen1Plus"
	case Gen2:
		return "Gen2"
	default:
		return fmt.Sprintf("GenUnknown(%d)", int(g))
	}
}

// GenerationThresholds holds the integer comparison points used to derive
// a Generation from a ReadInfo response's firmware field. Spec.md §6
// leaves the concrete values to an out-of-scope device-facing enumeration;
// these defaults are the core's own opaque placeholders, overridable by a
// caller that has access to the real enumeration.
type GenerationThresholds struct {
	Gen2Firmware     int
	Gen1PlusFirmware int
	Gen1Firmware     int
}

// DefaultGenerationThresholds returns conservative placeholder thresholds.
func DefaultGenerationThresholds() GenerationThresholds {
	return GenerationThresholds{
		Gen2Firmware:     300,
		Gen1PlusFirmware: 200,
		Gen1Firmware:     100,
	}
}

// Model identifies the device model variant; ModelAd is the "Ad" variant
// used by the Gen1Ad classification rule.
type Model int

const (
	ModelStandard Model = iota
	ModelAd
)

// DeriveGeneration implements the ordered test of spec.md §6: firmware
// above the Gen2 threshold wins outright; then Gen1Plus; then Gen1Ad if
// the model is the Ad variant; otherwise Gen1.
func DeriveGeneration(firmware int, model Model, th GenerationThresholds) Generation {
	switch {
	case firmware > th.Gen2Firmware:
		return Gen2
	case firmware > th.Gen1PlusFirmware:
		return Gen1Plus
	case firmware > th.Gen1Firmware && model == ModelAd:
		return Gen1Ad
	default:
		return Gen1
	}
}
