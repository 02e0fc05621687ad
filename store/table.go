package store

import (
	"fmt"
	"regexp"
)

const DefaultTableName = "fsindex"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Table identifies the index table, optionally inside a schema.
type Table struct {
	Schema string `yaml:"schema,omitempty"`
	Name   string `yaml:"name"`
}

// NewTable validates and returns a table identifier.
// An empty name falls back to DefaultTableName.
func NewTable(schema, name string) (Table, error) {
	if name == "" {
		name = DefaultTableName
	}

	t := Table{Schema: schema, Name: name}
	return t, t.Validate()
}

// Validate rejects identifiers that would need quoting to be safe.
func (t Table) Validate() error {
	if !identifierPattern.MatchString(t.Name) {
		return fmt.Errorf("%w: table '%s'", ErrInvalidTable, t.Name)
	}
	if t.Schema != "" && !identifierPattern.MatchString(t.Schema) {
		return fmt.Errorf("%w: schema '%s'", ErrInvalidTable, t.Schema)
	}

	return nil
}

func (t Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}
