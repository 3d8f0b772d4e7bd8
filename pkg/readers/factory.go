// Package readers provides sample readers that turn delimited files into sample sets.
package readers

import (
	"fmt"

	"github.com/TFMV/mongoload/pkg/core"
)

// Factory creates a reader based on the given configuration.
type Factory struct {
	// registered readers by type
	readers map[string]Creator
}

// Creator is a function that creates a reader from a configuration.
type Creator func(config core.ReaderConfig) (core.SampleReader, error)

// NewFactory creates a new reader factory.
func NewFactory() *Factory {
	return &Factory{
		readers: make(map[string]Creator),
	}
}

// Register registers a creator for a reader type.
func (f *Factory) Register(typ string, creator Creator) {
	f.readers[typ] = creator
}

// Create creates a reader based on the given configuration.
// An empty type selects the plain CSV reader.
func (f *Factory) Create(config core.ReaderConfig) (core.SampleReader, error) {
	typ := config.Type
	if typ == "" {
		typ = "csv"
	}
	creator, ok := f.readers[typ]
	if !ok {
		return nil, fmt.Errorf("unsupported reader type: %s", typ)
	}
	return creator(config)
}

// Types returns the registered reader types.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.readers))
	for typ := range f.readers {
		types = append(types, typ)
	}
	return types
}

// DefaultFactory is the default reader factory with built-in reader types.
var DefaultFactory = NewFactory()

// init registers built-in reader types.
func init() {
	DefaultFactory.Register("csv", NewCSVReader)
	DefaultFactory.Register("arrow", NewArrowCSVReader)
	DefaultFactory.Register("parquet", NewParquetReader)
}
