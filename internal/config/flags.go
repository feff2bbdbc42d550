package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagListen     = flag.String("listen", "", "Replication listen address")
	flagServer     = flag.String("server", "", "World server websocket URL")
	flagRate       = flag.Int("rate", 0, "Fixed updates per second")
	flagNoMetrics  = flag.Bool("no-metrics", false, "Disable the metrics endpoint")
	flagWindowed   = flag.Bool("windowed", false, "Run viewer in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run viewer in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Viewer width")
	flagHeight     = flag.Int("height", 0, "Viewer height")
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
	if *flagListen != "" {
		cfg.Network.ListenAddr = *flagListen
	}
	if *flagServer != "" {
		cfg.Network.ServerURL = *flagServer
	}
	if *flagRate > 0 {
		cfg.Simulation.FixedRate = *flagRate
	}
	if *flagNoMetrics {
		cfg.Metrics.Enabled = false
	}
	if *flagWindowed {
		cfg.Viewer.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Viewer.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Viewer.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Viewer.Height = *flagHeight
	}
}
