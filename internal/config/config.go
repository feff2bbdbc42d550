// Package config handles world configuration loading and management.
package config

import "time"

// Config holds all world settings.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Spatial    SpatialConfig    `yaml:"spatial"`
	Physics    PhysicsConfig    `yaml:"physics"`
	Network    NetworkConfig    `yaml:"network"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SimulationConfig holds fixed-timestep settings.
type SimulationConfig struct {
	FixedRate     int           `yaml:"fixed_rate" validate:"gt=0,lte=1000"`  // Fixed updates per second
	MaxFrameDelta time.Duration `yaml:"max_frame_delta" validate:"gt=0"`      // Frame delta clamp after stalls
	FrameInterval time.Duration `yaml:"frame_interval" validate:"gte=0"`      // Headless frame pacing, 0 = fixed step
}

// FixedDelta returns the duration of one fixed step.
func (s SimulationConfig) FixedDelta() time.Duration {
	return time.Second / time.Duration(s.FixedRate)
}

// SpatialConfig holds octree sizing.
type SpatialConfig struct {
	LooseRootHalfSize float32 `yaml:"loose_root_half_size" validate:"gt=0"`
	SnapRootHalfSize  float32 `yaml:"snap_root_half_size" validate:"gt=0"`
	SnapMinCellSize   float32 `yaml:"snap_min_cell_size" validate:"gt=0"`
	MinItemRadius     float32 `yaml:"min_item_radius" validate:"gt=0"`
}

// PhysicsConfig holds settings for the built-in integrator.
type PhysicsConfig struct {
	Gravity float32 `yaml:"gravity"` // Y acceleration, m/s^2
	FloorY  float32 `yaml:"floor_y"` // Dynamic bodies rest on this plane
}

// NetworkConfig holds replication settings.
type NetworkConfig struct {
	ListenAddr   string        `yaml:"listen_addr" validate:"required"`
	ServerURL    string        `yaml:"server_url"` // Empty runs the client offline
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	SendRate     int           `yaml:"send_rate" validate:"gt=0"` // State broadcasts per second
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr" validate:"required_with=Enabled"`
}

// ViewerConfig holds debug viewer window settings.
type ViewerConfig struct {
	Width      int  `yaml:"width" validate:"gt=0"`
	Height     int  `yaml:"height" validate:"gt=0"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" validate:"oneof=debug info warn error"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			FixedRate:     50,
			MaxFrameDelta: 250 * time.Millisecond,
			FrameInterval: 0,
		},
		Spatial: SpatialConfig{
			LooseRootHalfSize: 128,
			SnapRootHalfSize:  128,
			SnapMinCellSize:   1,
			MinItemRadius:     0.01,
		},
		Physics: PhysicsConfig{
			Gravity: -9.81,
			FloorY:  0,
		},
		Network: NetworkConfig{
			ListenAddr:   "127.0.0.1:7400",
			ServerURL:    "",
			WriteTimeout: 2 * time.Second,
			SendRate:     20,
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:7401",
		},
		Viewer: ViewerConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
