package flat

import (
	"fmt"

	"github.com/arloliu/flatcodec/internal/options"
)

const (
	DefaultMaxDepth  = 64
	DefaultMaxTables = 1000000
)

// VerifierConfig holds the limits a Verifier enforces.
type VerifierConfig struct {
	maxDepth       int
	maxTables      int
	alignmentCheck bool
	stringEndCheck bool
}

// VerifierOption configures a Verifier.
type VerifierOption = options.Option[*VerifierConfig]

// WithMaxDepth limits how deeply tables may nest.
func WithMaxDepth(depth int) VerifierOption {
	return options.New(func(c *VerifierConfig) error {
		if depth <= 0 {
			return fmt.Errorf("max depth must be positive, got %d", depth)
		}
		c.maxDepth = depth

		return nil
	})
}

// WithMaxTables limits the total number of tables visited.
func WithMaxTables(tables int) VerifierOption {
	return options.New(func(c *VerifierConfig) error {
		if tables <= 0 {
			return fmt.Errorf("max tables must be positive, got %d", tables)
		}
		c.maxTables = tables

		return nil
	})
}

// WithAlignmentCheck toggles alignment checks of scalars, offsets and vectors.
// It is on by default.
func WithAlignmentCheck(enabled bool) VerifierOption {
	return options.NoError(func(c *VerifierConfig) {
		c.alignmentCheck = enabled
	})
}

// WithStringEndCheck toggles the NUL terminator check of strings.
// It is on by default.
func WithStringEndCheck(enabled bool) VerifierOption {
	return options.NoError(func(c *VerifierConfig) {
		c.stringEndCheck = enabled
	})
}
