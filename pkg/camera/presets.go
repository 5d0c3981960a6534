package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	Preset960p    = "960p"
	Preset1080p   = "1080p"
	PresetPattern = "pattern"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetVGA:     DefaultConfig(),
		Preset720p:    HD720Config(),
		Preset960p:    SXGA960Config(),
		Preset1080p:   HD1080Config(),
		PresetPattern: PatternConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetVGA,
		Preset720p,
		Preset960p,
		Preset1080p,
		PresetPattern,
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

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// SXGA960Config returns the 1280x960 full sensor 4:3 mode of the Pi camera.
// Deltas of a still scene at this size compress to a few kilobytes.
func SXGA960Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 960
	return cfg
}

// HD1080Config returns 1080p Full HD configuration.
// Higher bandwidth; lower the framerate on slow links.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.Framerate = 15
	return cfg
}

// PatternConfig returns a small synthetic source that needs no camera.
func PatternConfig() Config {
	cfg := DefaultConfig()
	cfg.Device = ""
	cfg.Width = 320
	cfg.Height = 240
	cfg.Mirror = false
	cfg.Pattern = true
	return cfg
}
