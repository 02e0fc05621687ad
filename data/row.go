package data

import "fmt"

// IndexRow is the single persisted entity of the index.
//
// A row with a nil File is a placeholder: it marks FullDirectory as an
// existing directory that currently holds neither files nor subdirectories.
// Directory only carries the basename of FullDirectory and is what every
// lookup matches against, so two directories sharing a basename cannot be
// told apart by deletes or selects.
type IndexRow struct {
	Directory     string  `json:"directory"`
	FullDirectory string  `json:"full_directory"`
	File          *string `json:"file"`
}

// NewFileRow creates the row for file located directly in fullDirectory.
func NewFileRow(fullDirectory, file string) IndexRow {
	return IndexRow{
		Directory:     Basename(fullDirectory),
		FullDirectory: fullDirectory,
		File:          &file,
	}
}

// NewPlaceholderRow creates the row marking fullDirectory as empty.
func NewPlaceholderRow(fullDirectory string) IndexRow {
	return IndexRow{
		Directory:     Basename(fullDirectory),
		FullDirectory: fullDirectory,
	}
}

func (r IndexRow) IsPlaceholder() bool {
	return r.File == nil
}

// FileName returns the file name, or an empty string for placeholders.
func (r IndexRow) FileName() string {
	if r.File == nil {
		return ""
	}
	return *r.File
}

func (r IndexRow) String() string {
	if r.File == nil {
		return fmt.Sprintf("(%s, %s, <null>)", r.Directory, r.FullDirectory)
	}
	return fmt.Sprintf("(%s, %s, %s)", r.Directory, r.FullDirectory, *r.File)
}
