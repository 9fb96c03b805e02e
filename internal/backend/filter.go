package backend

import "strings"

// ResolveNames normalizes a user-supplied list of table or column names.
// Empty input, "all" or "*" mean no filtering and return nil.
func ResolveNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	for _, s := range names {
		lower := strings.ToLower(strings.TrimSpace(s))
		if lower == "all" || lower == "*" {
			return nil
		}
	}
	result := make([]string, 0, len(names))
	for _, s := range names {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// SplitList splits comma-separated values, as accepted by --tables.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SelectTables returns the tables to process. An explicit list is kept in
// the given order; otherwise every known table is used. Excluded names are
// dropped in both cases.
func SelectTables(all []TableInfo, explicit, exclude []string) []TableInfo {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	if len(explicit) == 0 {
		out := make([]TableInfo, 0, len(all))
		for _, t := range all {
			if !skip[t.Name] {
				out = append(out, t)
			}
		}
		return out
	}

	byName := make(map[string]TableInfo, len(all))
	for _, t := range all {
		byName[t.Name] = t
	}
	out := make([]TableInfo, 0, len(explicit))
	for _, name := range explicit {
		if skip[name] {
			continue
		}
		t, ok := byName[name]
		if !ok {
			t = TableInfo{Name: name}
		}
		out = append(out, t)
	}
	return out
}

// ColumnFilter decides which columns are eligible for replacement.
type ColumnFilter struct {
	include map[string]bool
	exclude map[string]bool
}

// NewColumnFilter builds a filter. An empty include list admits every column
// not excluded.
func NewColumnFilter(include, exclude []string) ColumnFilter {
	f := ColumnFilter{exclude: make(map[string]bool, len(exclude))}
	for _, c := range exclude {
		f.exclude[c] = true
	}
	if len(include) > 0 {
		f.include = make(map[string]bool, len(include))
		for _, c := range include {
			f.include[c] = true
		}
	}
	return f
}

// Allows reports whether column may be mutated. Primary key columns are
// handled by the caller.
func (f ColumnFilter) Allows(column string) bool {
	if f.exclude[column] {
		return false
	}
	if f.include != nil && !f.include[column] {
		return false
	}
	return true
}
