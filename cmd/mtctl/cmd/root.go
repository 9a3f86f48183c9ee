// Package cmd holds the mtctl commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/carlosmarte/fastify-multi-tenant-sub001/config"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/definitions"
)

// Version information
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("mtctl v%s (commit: %s, built on: %s)", Version, Commit, Date)
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFiles []string
	definitions string
	entitiesDir string
	logLevel    string
}

// NewRootCommand creates the root command for the mtctl application
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "mtctl",
		Short: "mtctl - Multi-tenant entity core",
		Long: `mtctl serves and inspects multi-tenant entities.
It loads entity definitions, resolves requests to entities and runs the
entity manager behind an admin HTTP API.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringSliceVarP(&flags.configFiles, "config", "c", nil, "Configuration files (yaml, json or toml), applied in order")
	pf.StringVarP(&flags.definitions, "definitions", "d", "", "Entity definitions file (overrides definitionsFile)")
	pf.StringVarP(&flags.entitiesDir, "entities", "e", "", "Entities directory (overrides entitiesDir)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(NewServeCommand(flags))
	cmd.AddCommand(NewValidateCommand(flags))
	cmd.AddCommand(NewIdentifyCommand(flags))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}

// loadConfig reads the configuration files and applies the flag overrides.
func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(f.configFiles)
	if err != nil {
		return config.Config{}, fmt.Errorf("load configuration: %w", err)
	}
	if f.definitions != "" {
		cfg.DefinitionsFile = f.definitions
	}
	if f.entitiesDir != "" {
		cfg.EntitiesDir = f.entitiesDir
	}
	return cfg, nil
}

// loadDefinitions reads the entity definitions named by cfg. Definition
// fields may be overridden from MULTITENANT_<TYPE>_<FIELD>.
func loadDefinitions(cfg config.Config) (*definitions.Static, error) {
	defs, err := definitions.LoadFile(cfg.DefinitionsFile, definitions.WithEnvOverrides(config.EnvPrefix))
	if err != nil {
		return nil, err
	}
	return defs, nil
}

func (f *globalFlags) newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
