package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/livetranslator/g2link/bluetooth"
	"github.com/livetranslator/g2link/protocol"
)

// Config holds all configuration for g2link
type Config struct {
	Glasses      GlassesConfig      `mapstructure:"glasses"`
	Teleprompter TeleprompterConfig `mapstructure:"teleprompter"`
	Pacing       PacingConfig       `mapstructure:"pacing"`
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// GlassesConfig selects the channel and how updates are rendered
type GlassesConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Mode          string `mapstructure:"mode"`
	AutoConnect   bool   `mapstructure:"auto_connect"`
	UseRightEye   bool   `mapstructure:"use_right_eye"`
	DisplayFormat string `mapstructure:"display_format"`
	StreamReplies bool   `mapstructure:"stream_replies"`
	ScanTimeout   int    `mapstructure:"scan_timeout"` // seconds
	QueueSize     int    `mapstructure:"queue_size"`
}

// TeleprompterConfig defines the page layout
type TeleprompterConfig struct {
	CharsPerLine      int `mapstructure:"chars_per_line"`
	LinesPerPage      int `mapstructure:"lines_per_page"`
	MinPages          int `mapstructure:"min_pages"`
	TotalLineEstimate int `mapstructure:"total_line_estimate"`
	LineHeight        int `mapstructure:"line_height"`
}

// PacingConfig defines inter-frame delays in milliseconds
type PacingConfig struct {
	AuthDelay      int `mapstructure:"auth_delay"`
	FileCheckDelay int `mapstructure:"file_check_delay"`
	StartDelay     int `mapstructure:"start_delay"`
	ChunkDelay     int `mapstructure:"chunk_delay"`
	EndDelay       int `mapstructure:"end_delay"`
	HeartbeatDelay int `mapstructure:"heartbeat_delay"`
	FrameDelay     int `mapstructure:"frame_delay"`
	SettleDelay    int `mapstructure:"settle_delay"`
}

// ServerConfig defines the HTTP control surface
type ServerConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Advertise bool   `mapstructure:"advertise"`
	Instance  string `mapstructure:"instance"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/g2link")
	}

	v.SetEnvPrefix("G2LINK")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file doesn't exist, we have defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Glasses defaults
	v.SetDefault("glasses.enabled", true)
	v.SetDefault("glasses.mode", string(bluetooth.ModeNotification))
	v.SetDefault("glasses.auto_connect", true)
	v.SetDefault("glasses.use_right_eye", false)
	v.SetDefault("glasses.display_format", string(bluetooth.DisplayBoth))
	v.SetDefault("glasses.stream_replies", true)
	v.SetDefault("glasses.scan_timeout", 10)
	v.SetDefault("glasses.queue_size", bluetooth.DefaultQueueSize)

	// Teleprompter defaults
	v.SetDefault("teleprompter.chars_per_line", protocol.DefaultCharsPerLine)
	v.SetDefault("teleprompter.lines_per_page", protocol.DefaultLinesPerPage)
	v.SetDefault("teleprompter.min_pages", protocol.DefaultMinPages)
	v.SetDefault("teleprompter.total_line_estimate", protocol.DefaultTotalLineEstimate)
	v.SetDefault("teleprompter.line_height", protocol.DefaultLineHeight)

	// Pacing defaults (milliseconds)
	v.SetDefault("pacing.auth_delay", 100)
	v.SetDefault("pacing.file_check_delay", 200)
	v.SetDefault("pacing.start_delay", 50)
	v.SetDefault("pacing.chunk_delay", 30)
	v.SetDefault("pacing.end_delay", 200)
	v.SetDefault("pacing.heartbeat_delay", 100)
	v.SetDefault("pacing.frame_delay", 30)
	v.SetDefault("pacing.settle_delay", 500)

	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.advertise", false)
	v.SetDefault("server.instance", "g2link")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects values the session cannot run with.
func (c *Config) Validate() error {
	if _, err := bluetooth.ParseMode(c.Glasses.Mode); err != nil {
		return fmt.Errorf("glasses.mode: %w", err)
	}
	if _, err := bluetooth.ParseDisplayFormat(c.Glasses.DisplayFormat); err != nil {
		return fmt.Errorf("glasses.display_format: %w", err)
	}
	if c.Glasses.ScanTimeout <= 0 {
		return fmt.Errorf("glasses.scan_timeout must be positive, got %d", c.Glasses.ScanTimeout)
	}
	p := c.Pacing
	for name, v := range map[string]int{
		"auth_delay":       p.AuthDelay,
		"file_check_delay": p.FileCheckDelay,
		"start_delay":      p.StartDelay,
		"chunk_delay":      p.ChunkDelay,
		"end_delay":        p.EndDelay,
		"heartbeat_delay":  p.HeartbeatDelay,
		"frame_delay":      p.FrameDelay,
		"settle_delay":     p.SettleDelay,
	} {
		if v < 0 {
			return fmt.Errorf("pacing.%s must not be negative, got %d", name, v)
		}
	}
	if c.Glasses.QueueSize <= 0 {
		return fmt.Errorf("glasses.queue_size must be positive, got %d", c.Glasses.QueueSize)
	}
	t := c.Teleprompter
	if t.CharsPerLine <= 0 || t.LinesPerPage <= 0 || t.MinPages < 0 {
		return fmt.Errorf("teleprompter layout %dx%d (min %d pages) is invalid", t.CharsPerLine, t.LinesPerPage, t.MinPages)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// Session converts the configuration into the session controller's.
func (c *Config) Session() bluetooth.Config {
	mode, _ := bluetooth.ParseMode(c.Glasses.Mode)
	format, _ := bluetooth.ParseDisplayFormat(c.Glasses.DisplayFormat)
	return bluetooth.Config{
		Mode:          mode,
		AutoConnect:   c.Glasses.AutoConnect,
		UseRightEye:   c.Glasses.UseRightEye,
		DisplayFormat: format,
		StreamReplies: c.Glasses.StreamReplies,
		ScanTimeout:   time.Duration(c.Glasses.ScanTimeout) * time.Second,
		QueueSize:     c.Glasses.QueueSize,
		Teleprompter: protocol.TeleprompterLayout{
			CharsPerLine:      c.Teleprompter.CharsPerLine,
			LinesPerPage:      c.Teleprompter.LinesPerPage,
			MinPages:          c.Teleprompter.MinPages,
			TotalLineEstimate: c.Teleprompter.TotalLineEstimate,
			LineHeight:        c.Teleprompter.LineHeight,
		},
		Pacing: bluetooth.PacingConfig{
			AuthDelay:      ms(c.Pacing.AuthDelay),
			FileCheckDelay: ms(c.Pacing.FileCheckDelay),
			StartDelay:     ms(c.Pacing.StartDelay),
			ChunkDelay:     ms(c.Pacing.ChunkDelay),
			EndDelay:       ms(c.Pacing.EndDelay),
			HeartbeatDelay: ms(c.Pacing.HeartbeatDelay),
			FrameDelay:     ms(c.Pacing.FrameDelay),
			SettleDelay:    ms(c.Pacing.SettleDelay),
		},
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
