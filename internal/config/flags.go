package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagPlanet  = flag.String("planet", "", "Planet name")
	flagTexRoot = flag.String("textures", "", "Texture root directory")
	flagLevel   = flag.Int("maxlevel", 0, "Maximum patch resolution level (1-14)")
	flagPreload = flag.Bool("preload", false, "Preload high resolution tiles")
	flagWidth   = flag.Int("width", 0, "Window width")
	flagHeight  = flag.Int("height", 0, "Window height")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagPlanet != "" {
		cfg.Data.Planet = *flagPlanet
	}
	if *flagTexRoot != "" {
		cfg.Data.TextureRoot = *flagTexRoot
	}
	if *flagLevel > 0 {
		cfg.Surface.MaxPatchLevel = *flagLevel
	}
	if *flagPreload {
		cfg.Surface.PreloadTiles = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
}
