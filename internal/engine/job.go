// Package engine walks database tables and rewrites matching values, leaving
// serialized structures valid, and runs schema engine/collation changes.
package engine

import (
	"errors"
	"fmt"

	"github.com/ppiankov/dbreplace/internal/replace"
)

const (
	DefaultPageSize  = 50000
	DefaultSampleCap = 30
)

// ErrConfig is wrapped by every job configuration error. A run that fails
// with it has touched no table.
var ErrConfig = errors.New("invalid job")

var (
	ErrEmptySearch       = fmt.Errorf("%w: %w", ErrConfig, replace.ErrEmptySearch)
	ErrInvalidPageSize   = fmt.Errorf("%w: page size must be positive", ErrConfig)
	ErrUnsupportedEngine = fmt.Errorf("%w: unsupported storage engine", ErrConfig)
	ErrInvalidCollation  = fmt.Errorf("%w: invalid collation name", ErrConfig)
	ErrAlterUnsupported  = fmt.Errorf("%w: backend cannot alter tables", ErrConfig)
	ErrNothingToAlter    = fmt.Errorf("%w: no engine or collation given", ErrConfig)
	ErrNoPrimaryKey      = errors.New("no primary key")
)

// Job configures a replacement run.
type Job struct {
	Searches     []string
	Replacements []string
	Regex        bool

	// Tables is the explicit table list; empty means every base table.
	Tables        []string
	ExcludeTables []string

	IncludeColumns []string
	ExcludeColumns []string

	PageSize int64
	DryRun   bool
	// SampleCap bounds the sampled changes per table. Zero selects the
	// default, a negative value disables sampling.
	SampleCap int
}

// Validate applies defaults and checks the job. It does not compile
// patterns; that happens when the run builds its replacer.
func (j *Job) Validate() error {
	if j.PageSize == 0 {
		j.PageSize = DefaultPageSize
	}
	if j.PageSize < 0 {
		return ErrInvalidPageSize
	}
	if j.SampleCap == 0 {
		j.SampleCap = DefaultSampleCap
	}
	for _, s := range j.Searches {
		if s != "" {
			return nil
		}
	}
	return ErrEmptySearch
}

// Replacer builds the replace strategy of the job.
func (j *Job) Replacer() (replace.Replacer, error) {
	r, err := replace.New(j.Searches, j.Replacements, j.Regex)
	if errors.Is(err, replace.ErrEmptySearch) {
		return nil, ErrEmptySearch
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return r, nil
}
