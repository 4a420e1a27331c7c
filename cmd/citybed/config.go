package main

import (
	"fmt"
	"os"
	"time"

	"github.com/andreiashu/citybed"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML configuration file. Flags set on the command line
// override it.
type fileConfig struct {
	DataDir        string        `yaml:"data_dir"`
	CacheDir       string        `yaml:"cache_dir"`
	SourceDir      string        `yaml:"source_dir"` // read tables from disk instead of HTTP
	BaseURL        string        `yaml:"base_url"`
	CountriesURL   string        `yaml:"countries_url"`
	ListenAddr     string        `yaml:"listen_addr"`
	ResultCacheTTL time.Duration `yaml:"result_cache_ttl"`
	Verbose        bool          `yaml:"verbose"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		DataDir:      "./citybed-data",
		CacheDir:     "./citybed-cache",
		BaseURL:      citybed.DefaultBaseURL,
		CountriesURL: citybed.DefaultCountriesURL,
		ListenAddr:   ":8080",
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// overlay copies every flag the user set onto cfg.
func (cfg *fileConfig) overlay(flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "data-dir":
			cfg.DataDir = f.Value.String()
		case "cache-dir":
			cfg.CacheDir = f.Value.String()
		case "source-dir":
			cfg.SourceDir = f.Value.String()
		case "base-url":
			cfg.BaseURL = f.Value.String()
		case "countries-url":
			cfg.CountriesURL = f.Value.String()
		case "listen-addr":
			cfg.ListenAddr = f.Value.String()
		case "result-cache-ttl":
			cfg.ResultCacheTTL, err = time.ParseDuration(f.Value.String())
		case "verbose":
			cfg.Verbose = f.Value.String() == "true"
		}
	})
	return err
}

// options turns cfg into Gazetteer options.
func (cfg fileConfig) options() []citybed.Option {
	opts := []citybed.Option{
		citybed.WithDataDir(cfg.DataDir),
		citybed.WithCacheDir(cfg.CacheDir),
		citybed.WithBaseURL(cfg.BaseURL),
		citybed.WithCountriesURL(cfg.CountriesURL),
		citybed.WithResultCacheTTL(cfg.ResultCacheTTL),
	}
	if cfg.SourceDir != "" {
		opts = append(opts, citybed.WithSource(citybed.DirSource{Dir: cfg.SourceDir}))
	}
	return opts
}
