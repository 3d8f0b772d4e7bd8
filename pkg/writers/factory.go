// Package writers dumps a working set to Arrow-backed file formats.
package writers

import (
	"fmt"
	"sort"

	"github.com/TFMV/mongoload/pkg/core"
)

// Factory creates a writer based on the given configuration.
type Factory struct {
	// registered writers by type
	writers map[string]Creator
}

// Creator is a function that creates a writer from a configuration.
type Creator func(config core.WriterConfig) (core.DatasetWriter, error)

// NewFactory creates a new writer factory.
func NewFactory() *Factory {
	return &Factory{
		writers: make(map[string]Creator),
	}
}

// Register registers a creator for a writer type.
func (f *Factory) Register(typ string, creator Creator) {
	f.writers[typ] = creator
}

// Create creates a writer based on the given configuration.
// An empty type selects the JSON writer.
func (f *Factory) Create(config core.WriterConfig) (core.DatasetWriter, error) {
	typ := config.Type
	if typ == "" {
		typ = "json"
	}
	creator, ok := f.writers[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported writer type: %s", typ)
	}
	return creator(config)
}

// Types returns the registered writer types in sorted order.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.writers))
	for typ := range f.writers {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory is the default writer factory with built-in writer types.
var DefaultFactory = NewFactory()

// init registers built-in writer types.
func init() {
	DefaultFactory.Register("parquet", NewParquetWriter)
	DefaultFactory.Register("arrow", NewArrowWriter)
	DefaultFactory.Register("json", NewJSONWriter)
}
