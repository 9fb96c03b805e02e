package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dbreplace/internal/backend"
	"github.com/ppiankov/dbreplace/internal/config"
	"github.com/ppiankov/dbreplace/internal/logging"
	"github.com/ppiankov/dbreplace/internal/mysql"
	"github.com/ppiankov/dbreplace/internal/postgres"
)

var (
	dsn       string
	driver    string
	schema    string
	charset   string
	verbose   bool
	logFormat string
	cfg       config.Config
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// ExitError carries a non-zero exit code for a command that completed but
// must report failure.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Reason
}

func newRootCmd(info BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:   "dbreplace",
		Short: "Search and replace across database tables, serialized values included",
		Long: "Walks database tables page by page and replaces text in every column. " +
			"Serialized arrays and objects are decoded, rewritten leaf by leaf and re-encoded " +
			"with correct string lengths.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init(verbose, logFormat, cmd.ErrOrStderr())

			cwd, err := os.Getwd()
			if err != nil {
				cwd = "."
			}
			cfg, err = config.Load(cwd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			slog.Debug("config loaded", "path", cwd, "found", config.Exists(cwd))

			// Apply config defaults if flags not explicitly set
			dsn = cfg.ResolveDSN(dsn)
			if !cmd.Flags().Changed("driver") && cfg.Driver != "" {
				driver = cfg.Driver
			}
			if schema == "" {
				schema = cfg.Schema
			}
			if charset == "" {
				charset = cfg.Charset
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dsn, "dsn", "", "database connection string (or set "+config.DSNEnv+")")
	root.PersistentFlags().StringVar(&driver, "driver", config.DriverMySQL, "database driver: mysql or postgres")
	root.PersistentFlags().StringVar(&schema, "schema", "", "postgres schema (default public)")
	root.PersistentFlags().StringVar(&charset, "charset", "", "initial connection character set")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "log format: text or json")

	root.AddCommand(newVersionCmd(info))
	root.AddCommand(newReplaceCmd(info))
	root.AddCommand(newAlterCmd(info))

	return root
}

func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dbreplace %s (commit %s, built %s)\n", info.Version, info.Commit, info.Date)
		},
	}
}

// conn is an open backend that can report its server version.
type conn interface {
	backend.Backend
	ServerVersion(ctx context.Context) (string, error)
}

// openBackend connects with the configured driver. The timeout bounds the
// connection attempt only.
func openBackend(ctx context.Context) (conn, error) {
	if dsn == "" {
		return nil, fmt.Errorf("--dsn is required (or set %s)", config.DSNEnv)
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.TimeoutDuration())
	defer cancel()

	bc := backend.Config{DSN: dsn, Charset: charset, Schema: schema}
	var (
		c   conn
		err error
	)
	switch driver {
	case config.DriverMySQL:
		c, err = mysql.Open(ctx, bc)
	case config.DriverPostgres:
		c, err = postgres.Open(ctx, bc)
	default:
		return nil, fmt.Errorf("unknown driver %q (want %s or %s)", driver, config.DriverMySQL, config.DriverPostgres)
	}
	if err != nil {
		return nil, err
	}

	ver, err := c.ServerVersion(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	slog.Info("connected", "driver", driver, "version", ver)
	return c, nil
}

// Execute runs the root command.
func Execute(info BuildInfo) error {
	return newRootCmd(info).Execute()
}
