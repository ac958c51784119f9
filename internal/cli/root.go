// Package cli implements the screener command-line interface.
//
// Every persistent flag is bound to the same viper keys the HTTP service reads
// from SCREENER_* environment variables, so "--data-dir" and
// SCREENER_DATA_DIR are interchangeable.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/aristath/screener/internal/config"
	"github.com/aristath/screener/pkg/logger"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

type app struct {
	v      *viper.Viper
	format string
}

// NewRootCommand builds the command tree. Each call gets its own viper
// instance, so commands can be built and executed repeatedly in tests.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.NewViper()}
	a.v.SetDefault("log_level", "warn")

	root := &cobra.Command{
		Use:           "screener",
		Short:         "Natural-language stock screener",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.format {
			case FormatText, FormatJSON:
				return nil
			default:
				return fmt.Errorf("unknown format %q, expected text or json", a.format)
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.format, "format", "f", FormatText, "output format: text or json")
	flags.String("backend", config.BackendSQLite, "data backend: sqlite, postgres or live")
	flags.String("data-dir", "./data", "directory holding the SQLite database")
	flags.String("sqlite-driver", "sqlite", "SQLite driver: sqlite (pure Go) or sqlite3 (cgo)")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("catalog-file", "", "YAML file replacing the built-in field catalog")
	flags.Duration("query-timeout", 0, "per-query storage deadline")
	flags.Bool("dev-mode", false, "seed the demo universe before running")
	flags.Bool("llm-enabled", false, "try the language-model parser before the rules")
	flags.String("live-universe", "", "comma separated symbols scanned by the live backend")
	flags.Duration("live-timeout", 0, "deadline for one live query (0 derives it from the universe)")
	flags.String("log-level", "warn", "log level: trace, debug, info, warn or error")

	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Name != "format" {
			a.v.BindPFlag(strings.ReplaceAll(flag.Name, "-", "_"), flag)
		}
	})

	root.AddCommand(
		newParseCommand(a),
		newCompileCommand(a),
		newRunCommand(a),
		newFieldsCommand(a),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup resolves the configuration and a logger writing to the command's stderr
func (a *app) setup(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, log, nil
}

func (a *app) writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func queryArg(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
