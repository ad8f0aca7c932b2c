// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the screening-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/screening-engine/internal/audit"
	"github.com/pdiddy/screening-engine/internal/collection"
	"github.com/pdiddy/screening-engine/internal/screening"
	"github.com/pdiddy/screening-engine/internal/sdb"
	"github.com/pdiddy/screening-engine/internal/secrets"
	"github.com/pdiddy/screening-engine/internal/zotero"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, else the named secret.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the screening-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "screening-engine",
	Short: "Synchronization engine for shared systematic-review libraries",
	Long: `screening-engine keeps a shared remote bibliography library and local
reviewer state in sync during a systematic literature review. Reviewer
decisions live as schema-versioned notes on the items themselves; the CLI
records decisions, audits collections, imports CSV decision sheets, prunes
duplicate and contradictory memberships, and bulk-removes stale assets.

Each concern is a subcommand: decide, pending, audit, sdb, collection,
purge, and snapshot.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./screening-engine.yaml or ~/.config/screening-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("screening-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "screening-engine"))
		}
	}

	viper.SetEnvPrefix("SCREENING_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig assembles the engine configuration from viper and the
// loaded secrets.
func engineConfig() types.EngineConfig {
	viper.SetDefault("library.library_type", "group")
	viper.SetDefault("library.requests_per_second", 3.0)
	viper.SetDefault("library.timeout", "30s")
	viper.SetDefault("audit.workers", 10)
	viper.SetDefault("agent", "screening-engine")

	cfg := types.EngineConfig{
		Library: types.LibraryConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("library.timeout"),
				UserAgent: viper.GetString("library.user_agent"),
			},
			LibraryID:         secretDefault("zotero-library-id", viper.GetString("library.library_id")),
			LibraryType:       viper.GetString("library.library_type"),
			APIKey:            secretDefault("zotero-api-key", viper.GetString("library.api_key")),
			RequestsPerSecond: viper.GetFloat64("library.requests_per_second"),
			OfflineDB:         viper.GetString("library.offline_db"),
		},
		Audit: types.AuditConfig{
			Workers: viper.GetInt("audit.workers"),
			Columns: types.ColumnMap{
				Key:      viper.GetString("audit.columns.key"),
				DOI:      viper.GetString("audit.columns.doi"),
				Title:    viper.GetString("audit.columns.title"),
				Status:   viper.GetString("audit.columns.status"),
				Code:     viper.GetString("audit.columns.code"),
				Reason:   viper.GetString("audit.columns.reason"),
				Evidence: viper.GetString("audit.columns.evidence"),
			},
		},
		Agent: viper.GetString("agent"),
	}
	if cfg.Library.UserAgent == "" {
		cfg.Library.UserAgent = "screening-engine/" + version
	}
	return cfg
}

// newGateway builds the library gateway: the HTTP client normally, or
// the read-only SQLite mirror when library.offline_db is set.
func newGateway(cfg types.EngineConfig) (zotero.Gateway, func() error, error) {
	if cfg.Library.OfflineDB != "" {
		store, err := zotero.OpenOffline(cfg.Library.OfflineDB)
		if err != nil {
			return nil, nil, err
		}
		fmt.Fprintf(os.Stderr, "Using offline mirror %s (read-only)\n", cfg.Library.OfflineDB)
		return store, store.Close, nil
	}
	if cfg.Library.LibraryID == "" {
		return nil, nil, fmt.Errorf("library ID not configured: set library.library_id or .secrets/zotero-library-id")
	}
	client := zotero.NewClient(cfg.Library)
	return client, func() error { return nil }, nil
}

// engine bundles the service layer behind one gateway.
type engine struct {
	cfg       types.EngineConfig
	gw        zotero.Gateway
	close     func() error
	cols      *collection.Service
	screening *screening.Service
	auditor   *audit.Auditor
	sdb       *sdb.Service
}

func newEngine() (*engine, error) {
	cfg := engineConfig()
	gw, closeFn, err := newGateway(cfg)
	if err != nil {
		return nil, err
	}
	cols := collection.NewService(gw, os.Stderr)
	return &engine{
		cfg:       cfg,
		gw:        gw,
		close:     closeFn,
		cols:      cols,
		screening: screening.NewService(gw, cols, cfg.Agent, os.Stderr),
		auditor:   audit.NewAuditor(gw, cols, cfg.Audit, cfg.Agent, os.Stderr),
		sdb:       sdb.NewService(gw),
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
