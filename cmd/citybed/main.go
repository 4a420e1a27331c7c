// Command citybed serves and maintains the citybed gazetteer.
//
// Usage:
//
//	citybed serve --listen-addr :8080
//	citybed search --countries US,CA --starts-with San --min-population 5000
//	citybed update-cache
//	citybed validate
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andreiashu/citybed"
	"github.com/andreiashu/citybed/internal/server"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        fileConfig
	log        *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:          "citybed",
		Short:        "Place name search with disambiguation over a GeoNames gazetteer.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.configPath)
			if err != nil {
				return err
			}
			if err := cfg.overlay(cmd.Flags()); err != nil {
				return err
			}
			a.cfg = cfg
			a.log = newLogger(cfg.Verbose)
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	flags.BoolP("verbose", "v", false, "set debug logging level")
	flags.String("data-dir", "./citybed-data", "directory raw downloads are kept in")
	flags.String("cache-dir", "./citybed-cache", "directory of the parsed snapshot cache (empty disables)")
	flags.String("source-dir", "", "read tables from this directory instead of downloading them")
	flags.String("base-url", citybed.DefaultBaseURL, "base URL of the city and admin tables")
	flags.String("countries-url", citybed.DefaultCountriesURL, "URL of countryInfo.txt")

	rootCmd.AddCommand(
		a.serveCmd(),
		a.searchCmd(),
		a.updateCacheCmd(),
		a.validateCmd(),
	)
	return rootCmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func (a *app) gazetteer() *citybed.Gazetteer {
	return citybed.New(append(a.cfg.options(), citybed.WithLogger(a.log))...)
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			gz := a.gazetteer()
			defer gz.Close()

			// Warm up in the background; requests arriving first wait on the
			// same load.
			go func() {
				if _, err := gz.Snapshot(ctx); err != nil {
					a.log.Warn("initial load failed, will retry on next request", "error", err)
				}
			}()

			srv, err := server.New(&server.Config{Logger: a.log, Gazetteer: gz})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			listener, err := net.Listen("tcp", a.cfg.ListenAddr)
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}
			a.log.Info("listening", "address", listener.Addr().String())
			return srv.Serve(ctx, listener)
		},
	}
	cmd.Flags().String("listen-addr", ":8080", "address to listen on")
	cmd.Flags().Duration("result-cache-ttl", 0, "cache search results for this long (0 disables)")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var q citybed.Query
	var countries string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run one search and print the results as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := q.Values()
			v.Set("countries", countries)
			q = citybed.ParseQuery(v)

			gz := a.gazetteer()
			defer gz.Close()
			results, err := gz.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	f := cmd.Flags()
	f.StringVar(&countries, "countries", citybed.AllCountries, "comma-separated ISO codes, or \"all\"")
	f.IntVar(&q.MinPopulation, "min-population", 0, "population floor")
	f.StringVar(&q.StartsWith, "starts-with", "", "name prefix")
	f.StringVar(&q.EndsWith, "ends-with", "", "name suffix")
	f.StringSliceVar(&q.Includes, "includes", nil, "substrings the name must contain")
	f.BoolVar(&q.ConvertCharacters, "convert-characters", false, "fold names to ASCII before comparing")
	f.BoolVar(&q.SearchAlternateNames, "search-alternate-names", false, "also match alternate names")
	return cmd
}

func (a *app) updateCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-cache",
		Short: "Reload the gazetteer from its source and rewrite the snapshot cache.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.CacheDir == "" {
				return errors.New("cache-dir is empty, nothing to update")
			}
			gz := a.gazetteer()
			defer gz.Close()
			s, err := gz.Reload(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cache regenerated: %d cities, %d countries.\n", len(s.Cities), len(s.Countries))
			return nil
		},
	}
}

func (a *app) validateCmd() *cobra.Command {
	v := citybed.DefaultValidation
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the gazetteer and run integrity checks.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			gz := a.gazetteer()
			defer gz.Close()
			s, err := gz.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("failed to load: %w", err)
			}
			if err := citybed.Validate(s, v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d cities, %d countries, %d known searches.\n", len(s.Cities), len(s.Countries), len(v.Known))
			return nil
		},
	}
	cmd.Flags().IntVar(&v.MinCities, "min-cities", v.MinCities, "minimum number of cities")
	cmd.Flags().IntVar(&v.MinCountries, "min-countries", v.MinCountries, "minimum number of countries")
	return cmd
}
