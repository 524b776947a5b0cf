// Package gather loads bar series into the local Parquet archive, either from
// CSV exports or from a remote provider.
package gather

import (
	"context"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the gathering and returns when it is done or ctx is
	// cancelled.
	Run(ctx context.Context) error
}
