// Package cmd implements the release-qa command line.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reactome/release-qa-sub001/internal/config"
	"github.com/reactome/release-qa-sub001/pkg/logger"
)

// Output formats.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	output  string
	noColor bool
	debug   bool
}

// NewRootCommand builds the command tree. Each call returns an independent
// tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:   "release-qa",
		Short: "Structural consistency checks for a release knowledgebase",
		Long: `release-qa walks the schema of a knowledgebase and reports instances that
break structural rules: inferral cycles, attributes colliding on the same
target, duplicated collections and containment species mismatches.

Instances come from PostgreSQL or from a YAML snapshot; the schema from a
YAML file or the schema tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default ./release-qa.yaml or $HOME/.release-qa/config.yaml)")
	pf.StringVarP(&opts.output, "output", "o", OutputTable, "output format (table, json)")
	pf.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newRunCommand(opts),
		newPairsCommand(opts),
		newServeCommand(opts),
		newStatusCommand(opts),
		newVersionCommand(),
	)
	return root
}

// Execute loads .env files and runs the command line.
func Execute() error {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")
	return NewRootCommand().Execute()
}

// init reads the config file and binds flags of the executing command.
func (o *rootOptions) init(cmd *cobra.Command) error {
	if o.cfgFile != "" {
		o.v.SetConfigFile(o.cfgFile)
	} else {
		o.v.SetConfigName("release-qa")
		o.v.SetConfigType("yaml")
		o.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			o.v.AddConfigPath(filepath.Join(home, ".release-qa"))
		}
	}

	o.v.SetEnvPrefix("RELEASE_QA")
	o.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	o.v.AutomaticEnv()

	if err := o.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if err := o.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if o.v.GetBool("debug") {
		os.Setenv("LOG_LEVEL", "debug")
	}
	o.output = o.v.GetString("output")
	o.noColor = o.v.GetBool("no-color") || os.Getenv("NO_COLOR") != ""
	return nil
}

// config loads the environment configuration and applies flag and config
// file overrides.
func (o *rootOptions) config() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	return cfg, nil
}

func (o *rootOptions) apply(cfg *config.Config) {
	if s := o.v.GetString("schema"); s != "" {
		cfg.QA.SchemaPath = s
	}
	if s := o.v.GetString("schema-source"); s != "" {
		cfg.QA.SchemaSource = s
	}
	if s := o.v.GetString("snapshot"); s != "" {
		cfg.QA.SnapshotPath = s
	}
	if s := o.v.GetString("suite"); s != "" {
		cfg.QA.SuitePath = s
	}
	if n := o.v.GetInt("parallelism"); n > 0 {
		cfg.QA.Parallelism = n
	}
}

// logger writes to stderr so table and JSON output stay clean.
func (o *rootOptions) logger() *slog.Logger {
	return logger.NewLoggerTo(os.Stderr).With(logger.Scope("cli"))
}
