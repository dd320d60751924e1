// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Surface  SurfaceConfig  `yaml:"surface"`
	Data     DataConfig     `yaml:"data"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// SurfaceConfig holds planetary surface rendering settings.
type SurfaceConfig struct {
	Reflect          bool `yaml:"surface_reflect"`        // specular water reflection
	Ripple           bool `yaml:"surface_ripple"`         // specular ripple (needs Reflect)
	Lights           bool `yaml:"surface_lights"`         // night-side city lights
	ManagedTiles     bool `yaml:"managed_tiles"`          // managed-pool texture allocation
	PreloadTiles     bool `yaml:"preload_mode"`           // load level 9+ textures at startup
	LoadFrequency    int  `yaml:"planet_load_frequency"`  // loader wake-ups per second
	MaxPatchLevel    int  `yaml:"max_patch_level"`        // subdivision cap, 8..14
	NightSpecularCut bool `yaml:"night_specular_cut"`     // drop specular on the night side
}

// DataConfig holds planetary data file locations.
type DataConfig struct {
	TextureRoot string `yaml:"texture_root"` // directory holding catalogue + archive files
	Planet      string `yaml:"planet"`       // planet name, prefix of all data files
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Surface: SurfaceConfig{
			Reflect:       true,
			Ripple:        false,
			Lights:        true,
			ManagedTiles:  true,
			PreloadTiles:  false,
			LoadFrequency: 20,
			MaxPatchLevel: 14,
		},
		Data: DataConfig{
			TextureRoot: "Textures",
			Planet:      "Earth",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
