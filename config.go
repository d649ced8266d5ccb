package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"riistakamera/internal/annotator"
	"riistakamera/internal/imagery"
)

// configEnv overrides the config file location.
const configEnv = "RIISTA_CONFIG"

type Config struct {
	ServerURL        string        `yaml:"server_url"`
	DataDir          string        `yaml:"data_dir"`
	Filter           string        `yaml:"filter"`
	AutoAdvance      bool          `yaml:"auto_advance"`
	AutoAdvanceDelay time.Duration `yaml:"auto_advance_delay"`
	NoticeTTL        time.Duration `yaml:"notice_ttl"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	Prefetch         bool          `yaml:"prefetch"`
	CacheSize        int           `yaml:"cache_size"`
	RankingLimit     int           `yaml:"ranking_limit"`
	Species          []string      `yaml:"species"`
	ExportDir        string        `yaml:"export_dir"`
	LogFile          string        `yaml:"log_file"`
	LogLevel         string        `yaml:"log_level"`
	NightGamma       float64       `yaml:"night_gamma"`
	Confirmations    bool          `yaml:"confirmations"`
}

func defaultConfig() *Config {
	def := annotator.DefaultConfig()
	species := make([]string, 0, len(def.Species))
	for _, s := range def.Species {
		species = append(species, s.String())
	}
	logFile := "riistakamera.log"
	if dir, err := os.UserCacheDir(); err == nil {
		logFile = filepath.Join(dir, "riistakamera", "riistakamera.log")
	}
	return &Config{
		DataDir:          ".",
		Filter:           string(def.Filter),
		AutoAdvance:      def.AutoAdvance,
		AutoAdvanceDelay: def.AutoAdvanceDelay,
		NoticeTTL:        def.NoticeTTL,
		RequestTimeout:   def.RequestTimeout,
		Prefetch:         def.Prefetch,
		CacheSize:        imagery.DefaultCacheSize,
		RankingLimit:     def.RankingLimit,
		Species:          species,
		LogFile:          logFile,
		LogLevel:         "info",
		NightGamma:       imagery.DefaultNightGamma,
		Confirmations:    true,
	}
}

// configPath is $RIISTA_CONFIG, or config.yaml in the user config dir.
func configPath() string {
	if p := os.Getenv(configEnv); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "riistakamera", "config.yaml")
}

// loadConfig reads path over the defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	home, _ := os.UserHomeDir()
	config.DataDir = expandPath(home, config.DataDir)
	config.ExportDir = expandPath(home, config.ExportDir)
	config.LogFile = expandPath(home, config.LogFile)
	config.Validate()
	return config, nil
}

func expandPath(home, value string) string {
	if value == "" {
		return value
	}
	if home != "" && (value == "~" || strings.HasPrefix(value, "~/")) {
		value = filepath.Join(home, strings.TrimPrefix(value, "~"))
	}
	if !filepath.IsAbs(value) {
		if absPath, err := filepath.Abs(value); err == nil {
			value = absPath
		}
	}
	return value
}

// Validate puts out-of-range values back to their defaults.
func (c *Config) Validate() {
	def := defaultConfig()
	if _, err := annotator.ParseFilter(c.Filter); err != nil {
		c.Filter = def.Filter
	}
	if c.AutoAdvanceDelay < 0 {
		c.AutoAdvanceDelay = def.AutoAdvanceDelay
	}
	if c.NoticeTTL <= 0 {
		c.NoticeTTL = def.NoticeTTL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.CacheSize <= 0 {
		c.CacheSize = def.CacheSize
	}
	if c.RankingLimit <= 0 {
		c.RankingLimit = def.RankingLimit
	}
	if c.NightGamma <= 0 {
		c.NightGamma = def.NightGamma
	}
	var species []string
	for _, s := range c.Species {
		if p := annotator.ParseSpecies(s); p != "" {
			species = append(species, p.String())
		}
	}
	// Keys 1-9 select species.
	if len(species) > 9 {
		species = species[:9]
	}
	if len(species) == 0 {
		species = def.Species
	}
	c.Species = species
	if c.LogFile == "" {
		c.LogFile = def.LogFile
	}
}

// applySource points the config at a backend given on the command line.
func (c *Config) applySource(source string) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		c.ServerURL = source
		return
	}
	c.ServerURL = ""
	home, _ := os.UserHomeDir()
	c.DataDir = expandPath(home, source)
}

func (c *Config) engineConfig() annotator.Config {
	cfg := annotator.DefaultConfig()
	cfg.Filter, _ = annotator.ParseFilter(c.Filter)
	cfg.AutoAdvance = c.AutoAdvance
	cfg.AutoAdvanceDelay = c.AutoAdvanceDelay
	cfg.NoticeTTL = c.NoticeTTL
	cfg.RequestTimeout = c.RequestTimeout
	cfg.RankingLimit = c.RankingLimit
	cfg.Prefetch = c.Prefetch
	cfg.Species = c.speciesSet()
	return cfg
}

func (c *Config) speciesSet() []annotator.Species {
	out := make([]annotator.Species, 0, len(c.Species))
	for _, s := range c.Species {
		out = append(out, annotator.ParseSpecies(s))
	}
	return out
}

func (c *Config) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// exportPath joins filename to the export directory, creating it.
func (c *Config) exportPath(filename string) (string, error) {
	if c.ExportDir == "" {
		return filename, nil
	}
	if err := os.MkdirAll(c.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	return filepath.Join(c.ExportDir, filename), nil
}
