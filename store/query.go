package store

import (
	"strconv"
	"strings"

	"github.com/mwantia/fsindex/data"
)

// Predicate selects index rows. Unset fields match anything, so an empty
// predicate matches the whole table. FileIsNull restricts the match to
// placeholder rows and takes precedence over File.
type Predicate struct {
	Directory     *string `json:"directory,omitempty"`
	FullDirectory *string `json:"full_directory,omitempty"`
	File          *string `json:"file,omitempty"`
	FileIsNull    bool    `json:"file_is_null,omitempty"`
}

// All matches every row.
func All() *Predicate {
	return &Predicate{}
}

// ByDirectory matches every row whose directory basename equals directory.
func ByDirectory(directory string) *Predicate {
	return &Predicate{Directory: &directory}
}

// PlaceholderOf matches the placeholder rows of the directory basename.
func PlaceholderOf(directory string) *Predicate {
	return &Predicate{Directory: &directory, FileIsNull: true}
}

// FileIn matches the rows for file inside the directory basename.
func FileIn(directory, file string) *Predicate {
	return &Predicate{Directory: &directory, File: &file}
}

// Match reports whether row satisfies the predicate.
func (p *Predicate) Match(row data.IndexRow) bool {
	if p == nil {
		return true
	}
	if p.Directory != nil && row.Directory != *p.Directory {
		return false
	}
	if p.FullDirectory != nil && row.FullDirectory != *p.FullDirectory {
		return false
	}
	if p.FileIsNull {
		return row.File == nil
	}
	if p.File != nil && (row.File == nil || *row.File != *p.File) {
		return false
	}

	return true
}

// Where renders the predicate as a SQL condition using the columns
// directory, full_directory and file. placeholder formats the n-th (1-based)
// bind parameter for the target dialect. An empty condition is returned for
// predicates that match everything.
func (p *Predicate) Where(placeholder func(n int) string) (string, []any) {
	if p == nil {
		return "", nil
	}

	var conditions []string
	var args []any

	bind := func(column, value string) {
		args = append(args, value)
		conditions = append(conditions, column+" = "+placeholder(len(args)))
	}

	if p.Directory != nil {
		bind("directory", *p.Directory)
	}
	if p.FullDirectory != nil {
		bind("full_directory", *p.FullDirectory)
	}
	if p.FileIsNull {
		conditions = append(conditions, "file IS NULL")
	} else if p.File != nil {
		bind("file", *p.File)
	}

	return strings.Join(conditions, " AND "), args
}

// DollarPlaceholder renders PostgreSQL style parameters ($1, $2, ...).
func DollarPlaceholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// QuestionPlaceholder renders SQLite style parameters.
func QuestionPlaceholder(int) string {
	return "?"
}
