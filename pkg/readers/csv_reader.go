package readers

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/TFMV/mongoload/pkg/core"
)

const (
	// maxLineSize bounds a single sample line.
	maxLineSize = 4 * 1024 * 1024

	// ctxCheckInterval is how many lines are scanned between context checks.
	ctxCheckInterval = 1024
)

// CSVReader reads plain comma-separated sample files. It does not support
// quoting, escaping or embedded commas.
type CSVReader struct {
	path   string
	file   *os.File
	policy core.RowPolicy
}

// NewCSVReader creates a new CSV reader.
func NewCSVReader(config core.ReaderConfig) (core.SampleReader, error) {
	if config.Path == "" {
		return nil, errors.New("path is required for CSV reader")
	}

	// Open the file
	file, err := os.Open(config.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open CSV file: %w", core.ErrFileRead, err)
	}

	policy := config.Policy
	if policy == "" {
		policy = core.Lenient
	}

	return &CSVReader{
		path:   config.Path,
		file:   file,
		policy: policy,
	}, nil
}

// Read parses the header line and every non-blank data line.
func (r *CSVReader) Read(ctx context.Context) (*core.SampleSet, error) {
	if r.file == nil {
		return nil, fmt.Errorf("%w: reader is closed", core.ErrFileRead)
	}

	scanner := bufio.NewScanner(r.file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	set := &core.SampleSet{}
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		values := splitLine(line)
		if set.Header == nil {
			header, err := normalizeHeader(values)
			if err != nil {
				return nil, err
			}
			set.Header = header
			continue
		}

		rec, err := buildRecord(set.Header, values, r.policy, lineNo)
		if err != nil {
			return nil, err
		}
		set.Records = append(set.Records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV: %w", core.ErrFileRead, err)
	}
	if set.Header == nil {
		return nil, fmt.Errorf("%w: %s has no header line", core.ErrFileRead, r.path)
	}

	return set, nil
}

// Close closes the reader and releases resources.
func (r *CSVReader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
