package config

import "sort"

// Presets are complete configurations keyed by name.
var Presets = map[string]func() *Config{
	"high-gear": DefaultConfig,
	"low-gear": func() *Config {
		cfg := DefaultConfig()
		cfg.Gear = GearLow
		return cfg
	},
	// A lighter chassis on mini CIMs with a slower reduction.
	"practice-bot": func() *Config {
		cfg := DefaultConfig()
		cfg.Drivetrain.Motor = "minicim"
		cfg.Drivetrain.Mass = 38
		cfg.Drivetrain.Inertia = 4.2
		cfg.Drivetrain.RobotRadius = 0.55 / 2
		cfg.Drivetrain.LowRatio = 12.0 / 72.0
		cfg.Drivetrain.HighRatio = 12.0 / 72.0
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
