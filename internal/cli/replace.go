package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/dbreplace/internal/backend"
	"github.com/ppiankov/dbreplace/internal/engine"
	"github.com/ppiankov/dbreplace/internal/report"
	"github.com/ppiankov/dbreplace/internal/reporter"
)

func newReplaceCmd(info BuildInfo) *cobra.Command {
	var (
		searches     []string
		replacements []string
		regex        bool
		tables       []string
		includeCols  []string
		excludeCols  []string
		pageSize     int64
		dryRun       bool
		format       string
		sampleCap    int
	)

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace text in every selected table and column",
		Example: `  dbreplace replace --dsn 'wp:secret@tcp(127.0.0.1:3306)/wp' -s http://old.example -r https://new.example --dry-run
  dbreplace replace --driver postgres -s '#old\.example/(\w+)#' -r 'new.example/$1' -g -t wp_posts,wp_options`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use config values as defaults if flags not explicitly set
			if !cmd.Flags().Changed("format") && cfg.Defaults.Format != "" {
				format = cfg.Defaults.Format
			}
			if !cmd.Flags().Changed("page-size") && cfg.Defaults.PageSize > 0 {
				pageSize = cfg.Defaults.PageSize
			}
			if !cmd.Flags().Changed("report-sample-cap") && cfg.Defaults.ReportSampleCap != 0 {
				sampleCap = cfg.Defaults.ReportSampleCap
			}
			outFormat, err := reporter.ParseFormat(format)
			if err != nil {
				return err
			}

			job := engine.Job{
				Searches:       searches,
				Replacements:   replacements,
				Regex:          regex,
				Tables:         backend.SplitList(tables),
				ExcludeTables:  cfg.Exclude.Tables,
				IncludeColumns: backend.SplitList(includeCols),
				ExcludeColumns: append(backend.SplitList(excludeCols), cfg.Exclude.Columns...),
				PageSize:       pageSize,
				DryRun:         dryRun,
				SampleCap:      sampleCap,
			}
			// Configuration errors abort before connecting.
			if err := job.Validate(); err != nil {
				return err
			}
			if _, err := job.Replacer(); err != nil {
				return err
			}

			db, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			rep, err := engine.Run(cmd.Context(), db, job)
			if err != nil {
				return err
			}

			meta := reporter.NewMetadata("replace", info.Version)
			if err := reporter.WriteRun(cmd.OutOrStdout(), meta, rep, outFormat); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if code := report.ExitCode(rep.Errors, rep.DryRun); code != 0 {
				return &ExitError{
					Code:   code,
					Reason: fmt.Sprintf("run completed with %d row or table errors", rep.Errors.Failures()),
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringArrayVarP(&searches, "search", "s", nil, "text to search for; repeat for several literal pairs")
	f.StringArrayVarP(&replacements, "replace", "r", nil, "replacement text; repeat to pair with each --search")
	f.BoolVarP(&regex, "regex", "g", false, "treat --search as a delimited regular expression like /old(\\d+)/i")
	f.StringSliceVarP(&tables, "tables", "t", nil, "tables to process (default all base tables)")
	f.StringSliceVarP(&includeCols, "include-cols", "i", nil, "only touch these columns")
	f.StringSliceVarP(&excludeCols, "exclude-cols", "x", nil, "never touch these columns")
	f.Int64VarP(&pageSize, "page-size", "l", engine.DefaultPageSize, "rows read per page")
	f.BoolVarP(&dryRun, "dry-run", "z", false, "report changes without writing them")
	f.StringVar(&format, "format", "text", "output format: text or json")
	f.IntVar(&sampleCap, "report-sample-cap", engine.DefaultSampleCap, "sampled changes kept per table")

	return cmd
}
