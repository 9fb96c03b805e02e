package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dbreplace/internal/backend"
	"github.com/ppiankov/dbreplace/internal/engine"
	"github.com/ppiankov/dbreplace/internal/report"
	"github.com/ppiankov/dbreplace/internal/reporter"
)

func newAlterCmd(info BuildInfo) *cobra.Command {
	var (
		engineName string
		collation  string
		tables     []string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "alter",
		Short: "Change the storage engine or collation of tables (MySQL)",
		Long: "Issues ALTER TABLE for every selected table whose engine or collation differs " +
			"from the target. --engine takes precedence over --collation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") && cfg.Defaults.Format != "" {
				format = cfg.Defaults.Format
			}
			outFormat, err := reporter.ParseFormat(format)
			if err != nil {
				return err
			}

			job := engine.AlterJob{
				Engine:        engineName,
				Collation:     collation,
				Tables:        backend.SplitList(tables),
				ExcludeTables: cfg.Exclude.Tables,
			}
			if job.Engine == "" {
				if job.Collation == "" {
					return engine.ErrNothingToAlter
				}
				if _, err := engine.CollationCharset(job.Collation); err != nil {
					return err
				}
			}

			db, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			rep, err := engine.Alter(cmd.Context(), db, job)
			if err != nil {
				return err
			}

			meta := reporter.NewMetadata("alter", info.Version)
			if err := reporter.WriteAlter(cmd.OutOrStdout(), meta, rep, outFormat); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if code := report.ExitCode(rep.Errors, false); code != 0 {
				return &ExitError{
					Code:   code,
					Reason: fmt.Sprintf("%d tables could not be altered", rep.Errors.Failures()),
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&engineName, "engine", "e", "", "target storage engine, e.g. InnoDB")
	f.StringVarP(&collation, "collation", "a", "", "target collation, e.g. utf8mb4_unicode_ci")
	f.StringSliceVarP(&tables, "tables", "t", nil, "tables to alter (default all base tables)")
	f.StringVar(&format, "format", "text", "output format: text or json")

	return cmd
}
