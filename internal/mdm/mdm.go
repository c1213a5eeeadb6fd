// Package mdm defines the metric sink the forwarder emits into and the
// backends that implement it.
package mdm

//go:generate mockgen -destination=mocks/mock_mdm.go -package=mocks github.com/and161185/mdm-forwarder/internal/mdm Backend,Handle

import (
	"context"

	"github.com/and161185/mdm-forwarder/model"
)

// Handle is a backend metric bound to one account and identity.
type Handle interface {
	// LogValueAtTime submits one point. dim1Value and dim2Value are the
	// values of the identity's first and second dimension.
	LogValueAtTime(ctx context.Context, ticks, value int64, dim1Value, dim2Value string) error
}

// Backend creates metric handles.
type Backend interface {
	NewMetric(ctx context.Context, account string, id model.MetricIdentity) (Handle, error)
}
