// Package main provides the genfile command-line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/carbocation/genfile"
	"github.com/carbocation/pfx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	app := newApp()
	cmd := app.rootCommand()
	cmd.SetArgs(args)
	err := cmd.Execute()
	app.logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

// app holds what every subcommand shares: its own viper instance and the
// logger built from it.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
}

func newApp() *app {
	return &app{v: viper.New(), logger: zap.NewNop()}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "genfile",
		Short:   "Read, combine and write genotype probability files",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Long: `genfile streams variants and genotype probabilities from GEN and BGEN
files, optionally joining files that share variants, filtering by position or
identifier, and writing the result as BGEN.

Settings may also come from a YAML file (--config) or from GENFILE_* variables,
e.g. GENFILE_LOG_LEVEL=debug.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.configure(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML configuration file")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.Bool("log-development", false, "Human-readable development logging")
	flags.String("type", "", fmt.Sprintf("Input file type, one of %s (detected from the extension if empty)", strings.Join(genfile.FileTypes(), ", ")))
	flags.String("compression", "auto", "Input compression: auto, none, gzip, zstd, lz4")
	flags.String("chromosome", "", "Chromosome for inputs that do not record one")

	root.AddCommand(
		a.inspectCommand(),
		a.catCommand(),
		a.convertCommand(),
		a.indexCommand(),
	)
	return root
}

// configure binds flags, environment and config file into a.v and builds
// the logger.
func (a *app) configure(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return pfx.Err(err)
	}
	a.v.SetEnvPrefix("GENFILE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if cfg := a.v.GetString("config"); cfg != "" {
		a.v.SetConfigFile(expandHome(cfg))
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", cfg, err)
		}
	}

	logger, err := buildLogger(a.v.GetString("log-level"), a.v.GetBool("log-development"))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func buildLogger(level string, development bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// openOptions translates the shared input flags.
func (a *app) openOptions() (genfile.Options, error) {
	c, err := genfile.ParseCompression(a.v.GetString("compression"))
	if err != nil {
		return genfile.Options{}, err
	}
	return genfile.Options{
		FileType:    a.v.GetString("type"),
		Compression: c,
		Chromosome:  genfile.Chromosome(a.v.GetString("chromosome")),
		Logger:      a.logger,
	}, nil
}

// openInputs opens paths as one source: a chain of the files by default, or
// a rack joining them on shared variants when join is set.
func (a *app) openInputs(ctx context.Context, paths []string, join bool, compareFields string) (genfile.VariantDataSource, error) {
	opts, err := a.openOptions()
	if err != nil {
		return nil, err
	}
	for i := range paths {
		paths[i] = expandHome(paths[i])
	}
	if !join || len(paths) == 1 {
		return genfile.OpenAll(ctx, paths, opts)
	}

	comparator, err := genfile.ParseCompareFields(compareFields)
	if err != nil {
		return nil, err
	}
	sources := make([]genfile.VariantDataSource, 0, len(paths))
	for _, p := range paths {
		s, err := genfile.Open(ctx, p, opts)
		if err != nil {
			for _, opened := range sources {
				opened.Close()
			}
			return nil, err
		}
		sources = append(sources, s)
	}
	rack, err := genfile.NewRack(sources, genfile.WithComparator(comparator), genfile.WithRackLogger(a.logger))
	if err != nil {
		for _, s := range sources {
			s.Close()
		}
		return nil, err
	}
	return rack, nil
}

// expandHome resolves a leading "~/" to the current user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	usr, err := user.Current()
	if err != nil {
		return path
	}
	return filepath.Join(usr.HomeDir, path[2:])
}
