package collection

import (
	"go.uber.org/zap"

	"github.com/opencanarias/taple-client-sub000/pkg/keys"
)

type options struct {
	logger   *zap.Logger
	rootMode keys.RootMode
}

// Option configures a root collection. Partitions inherit their parent's
// options.
type Option func(*options)

// WithLogger sets the logger used for debug tracing of collection operations.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRootMode selects how the root name is laid out in physical keys.
// keys.LegacyRoot lets roots whose names prefix each other see each other's
// entries, and forward and reverse scans of such a root may disagree.
func WithRootMode(mode keys.RootMode) Option {
	return func(o *options) {
		o.rootMode = mode
	}
}
