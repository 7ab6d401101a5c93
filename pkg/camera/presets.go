package camera

// Preset names for common configurations
const (
	PresetDefault  = "default"
	PresetLow      = "low"
	PresetBalanced = "balanced"
	PresetDetail   = "detail"
	PresetStill    = "still"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:  DefaultConfig(),
		PresetLow:      LowConfig(),
		PresetBalanced: BalancedConfig(),
		PresetDetail:   DetailConfig(),
		PresetStill:    StillConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLow,
		PresetBalanced,
		PresetDetail,
		PresetStill,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	presets := Presets()
	if cfg, ok := presets[name]; ok {
		return &cfg
	}
	return nil
}

// LowConfig returns a small, heavily compressed frame for slow links.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Quality = 60
	return cfg
}

// BalancedConfig returns 640x480 at moderate quality.
func BalancedConfig() Config {
	return DefaultConfig()
}

// DetailConfig returns 720p for reading labels and small parts.
func DetailConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Quality = 90
	return cfg
}

// StillConfig keeps the cached frame while the scene does not change.
func StillConfig() Config {
	cfg := DefaultConfig()
	cfg.DedupeDistance = 6
	return cfg
}
