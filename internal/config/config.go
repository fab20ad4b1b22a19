// Package config provides Viper-based configuration loading for the
// sketchparty game server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read deadline for HTTP requests.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write deadline for HTTP responses.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GameConfig holds room and round pacing settings.
type GameConfig struct {
	// MaxPlayers caps membership per room.
	MaxPlayers int `mapstructure:"max_players"`
	// MaxRounds is the number of rounds in a full game.
	MaxRounds int `mapstructure:"max_rounds"`
	// StartDelay separates a start request from round one.
	StartDelay time.Duration `mapstructure:"start_delay"`
	// RoundDuration is the drawing time per round.
	RoundDuration time.Duration `mapstructure:"round_duration"`
	// InterRoundDelay separates consecutive rounds.
	InterRoundDelay time.Duration `mapstructure:"inter_round_delay"`
	// ViewResultsDelay is how long the final leaderboard is shown.
	ViewResultsDelay time.Duration `mapstructure:"view_results_delay"`
	// TickInterval is the countdown broadcast period.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// IdleAfter is the inactivity threshold for room eviction.
	IdleAfter time.Duration `mapstructure:"idle_after"`
	// SweepInterval is how often the idle sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// GuessBase is the base award for a correct guess.
	GuessBase int `mapstructure:"guess_base"`
	// SpeedBonusMax is the maximum speed bonus for an instant guess.
	SpeedBonusMax int `mapstructure:"speed_bonus_max"`
	// DrawerAward is the flat drawer award per correct guess.
	DrawerAward int `mapstructure:"drawer_award"`
}

// WordsConfig holds word-corpus settings.
type WordsConfig struct {
	// Dir is the directory of YAML word files; empty = compiled-in corpus.
	Dir string `mapstructure:"dir"`
	// HistorySize is the per-room anti-repetition window.
	HistorySize int `mapstructure:"history_size"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Words   WordsConfig   `mapstructure:"words"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWords(c.Words); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.MaxPlayers < 2 {
		errs = append(errs, fmt.Sprintf("game.max_players must be >= 2, got %d", g.MaxPlayers))
	}
	if g.MaxRounds < 1 {
		errs = append(errs, fmt.Sprintf("game.max_rounds must be >= 1, got %d", g.MaxRounds))
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"game.start_delay", g.StartDelay},
		{"game.round_duration", g.RoundDuration},
		{"game.inter_round_delay", g.InterRoundDelay},
		{"game.view_results_delay", g.ViewResultsDelay},
		{"game.tick_interval", g.TickInterval},
		{"game.idle_after", g.IdleAfter},
		{"game.sweep_interval", g.SweepInterval},
	}
	for _, entry := range durations {
		if entry.d <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be > 0, got %s", entry.name, entry.d))
		}
	}
	if g.GuessBase < 1 {
		errs = append(errs, fmt.Sprintf("game.guess_base must be >= 1, got %d", g.GuessBase))
	}
	if g.SpeedBonusMax < 0 {
		errs = append(errs, fmt.Sprintf("game.speed_bonus_max must be >= 0, got %d", g.SpeedBonusMax))
	}
	if g.DrawerAward < 0 {
		errs = append(errs, fmt.Sprintf("game.drawer_award must be >= 0, got %d", g.DrawerAward))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWords(w WordsConfig) error {
	if w.HistorySize < 0 {
		return fmt.Errorf("words.history_size must be >= 0, got %d", w.HistorySize)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SKETCHPARTY_ prefix
	v.SetEnvPrefix("SKETCHPARTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("game.max_players", 8)
	v.SetDefault("game.max_rounds", 3)
	v.SetDefault("game.start_delay", "3s")
	v.SetDefault("game.round_duration", "80s")
	v.SetDefault("game.inter_round_delay", "5s")
	v.SetDefault("game.view_results_delay", "10s")
	v.SetDefault("game.tick_interval", "1s")
	v.SetDefault("game.idle_after", "10m")
	v.SetDefault("game.sweep_interval", "1m")
	v.SetDefault("game.guess_base", 100)
	v.SetDefault("game.speed_bonus_max", 50)
	v.SetDefault("game.drawer_award", 25)

	v.SetDefault("words.dir", "")
	v.SetDefault("words.history_size", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
