package flat

import (
	"fmt"

	"github.com/arloliu/flatcodec/internal/options"
	"github.com/arloliu/flatcodec/section"
)

const defaultInitialSize = 1024

// BuilderConfig holds the construction-time settings of a Builder.
type BuilderConfig struct {
	initialSize   int
	forceDefaults bool
	sharedStrings bool
}

// BuilderOption configures a Builder.
type BuilderOption = options.Option[*BuilderConfig]

// WithInitialSize sets the initial capacity of the byte region.
// The region doubles on demand, so this only avoids early reallocations.
func WithInitialSize(size int) BuilderOption {
	return options.New(func(c *BuilderConfig) error {
		if size < 0 || size > section.MaxBufferSize {
			return fmt.Errorf("initial size %d out of range", size)
		}
		c.initialSize = size

		return nil
	})
}

// WithForceDefaults writes scalar fields even when they equal their default.
func WithForceDefaults(force bool) BuilderOption {
	return options.NoError(func(c *BuilderConfig) {
		c.forceDefaults = force
	})
}

// WithSharedStrings makes CreateString reuse the payload of an identical
// string written earlier by the same builder.
func WithSharedStrings(shared bool) BuilderOption {
	return options.NoError(func(c *BuilderConfig) {
		c.sharedStrings = shared
	})
}
