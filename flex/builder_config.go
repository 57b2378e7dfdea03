package flex

import (
	"fmt"

	"github.com/arloliu/flatcodec/format"
	"github.com/arloliu/flatcodec/internal/options"
)

// BuilderConfig holds the construction-time settings of a Builder.
type BuilderConfig struct {
	initialSize     int
	shareKeys       bool
	shareStrings    bool
	shareKeyVectors bool
	forceMinWidth   format.BitWidth
}

// BuilderOption configures a Builder.
type BuilderOption = options.Option[*BuilderConfig]

// WithInitialSize reserves capacity for the value buffer up front.
func WithInitialSize(size int) BuilderOption {
	return options.New(func(c *BuilderConfig) error {
		if size < 0 {
			return fmt.Errorf("initial size must not be negative, got %d", size)
		}
		c.initialSize = size

		return nil
	})
}

// WithShareKeys stores each distinct map key once per buffer. Default on.
func WithShareKeys(share bool) BuilderOption {
	return options.NoError(func(c *BuilderConfig) {
		c.shareKeys = share
	})
}

// WithShareStrings stores each distinct string value once per buffer. Default off.
func WithShareStrings(share bool) BuilderOption {
	return options.NoError(func(c *BuilderConfig) {
		c.shareStrings = share
	})
}

// WithShareKeyVectors lets maps with the same key set share one key vector.
// Default on.
func WithShareKeyVectors(share bool) BuilderOption {
	return options.NoError(func(c *BuilderConfig) {
		c.shareKeyVectors = share
	})
}

// WithForceMinWidth sets the narrowest width vectors and maps may use.
func WithForceMinWidth(w format.BitWidth) BuilderOption {
	return options.New(func(c *BuilderConfig) error {
		if w > format.Width64 {
			return fmt.Errorf("invalid bit width %d", w)
		}
		c.forceMinWidth = w

		return nil
	})
}
