// Package integrations provides a common interface for document stores
// that can receive benchmark load.
package integrations

import (
	"context"
	"fmt"

	"github.com/TFMV/mongoload/pkg/core"
)

// Database represents any document store a benchmark can target.
type Database interface {
	// PrepareCollection ensures the collection exists with the given options,
	// optionally clears it, and returns a handle to it.
	PrepareCollection(ctx context.Context, spec CollectionSpec) (core.Collection, error)

	// Address returns the backend address with credentials removed.
	Address() string

	// Close releases the connection. Calling Close more than once is safe.
	Close(ctx context.Context) error
}

// CollectionSpec describes the target collection of a run.
type CollectionSpec struct {
	// Database is the database name.
	Database string

	// Name is the collection name.
	Name string

	// AutoIndexID creates the default index on the identifier field.
	AutoIndexID bool

	// Capped creates a fixed-size collection of SizeBytes bytes.
	Capped bool

	// SizeBytes is the capped collection size.
	SizeBytes int64

	// MaxDocuments optionally bounds a capped collection by document count.
	MaxDocuments int64

	// Clear removes prior contents of an existing collection.
	Clear bool

	// IDMode decides whether record IDs become document identifiers.
	IDMode core.IDMode
}

// Namespace returns "database.collection".
func (s CollectionSpec) Namespace() string {
	return s.Database + "." + s.Name
}

// Validate checks the spec for missing names and inconsistent capped options.
func (s CollectionSpec) Validate() error {
	if s.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if s.Name == "" {
		return fmt.Errorf("collection name is required")
	}
	if s.Capped && s.SizeBytes <= 0 {
		return fmt.Errorf("capped collection %s requires a positive size", s.Namespace())
	}
	return nil
}
