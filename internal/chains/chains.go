// Package chains abstracts the block sources the indexer replays from.
// The network migrated twice, so history lives on three chains; every
// source maps its raw block ordinals onto one shared adjusted-height
// axis and a router picks the source that owns a given height.
package chains

import (
	"context"
	"fmt"

	"github.com/openaudio/discovery-indexer/internal/domain"
)

// Adapter is a read-only view of one chain. Heights are always
// cutover-adjusted; adapters translate back to their raw ordinals
// internally.
type Adapter interface {
	// Name identifies the source in logs and checkpoints.
	Name() string
	// GetBatchForBlock fetches the manage-entity transactions at an
	// adjusted height. A height the chain produced no block for (for
	// example a skipped slot) yields an empty batch, not an error.
	GetBatchForBlock(ctx context.Context, height uint64) (*domain.BlockBatch, error)
	// GetLatestAvailableHeight returns the newest adjusted height the
	// source can serve.
	GetLatestAvailableHeight(ctx context.Context) (uint64, error)
}

// Cutover maps a chain's raw ordinals onto the shared height axis.
// Offsets are fixed per environment and never change once set, since
// every node must compute identical adjusted heights.
type Cutover struct {
	Offset uint64
}

// Adjust converts a raw chain ordinal to an adjusted height.
func (c Cutover) Adjust(raw uint64) uint64 { return raw + c.Offset }

// Raw converts an adjusted height back to the chain's own ordinal.
func (c Cutover) Raw(adjusted uint64) uint64 { return adjusted - c.Offset }

// Route binds an adapter to the adjusted-height range it owns. To is
// inclusive; zero means open-ended (the currently active chain).
type Route struct {
	Adapter Adapter
	From    uint64
	To      uint64
}

// Router picks the adapter that owns an adjusted height.
type Router struct {
	routes []Route
}

// NewRouter builds a router. Routes must be in ascending order, must
// not overlap, and only the last may be open-ended.
func NewRouter(routes ...Route) (*Router, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("router requires at least one route")
	}
	for i, r := range routes {
		if r.Adapter == nil {
			return nil, fmt.Errorf("route %d has no adapter", i)
		}
		if r.To != 0 && r.To < r.From {
			return nil, fmt.Errorf("route %s has inverted range [%d, %d]", r.Adapter.Name(), r.From, r.To)
		}
		if i > 0 {
			prev := routes[i-1]
			if prev.To == 0 {
				return nil, fmt.Errorf("route %s follows an open-ended route", r.Adapter.Name())
			}
			if r.From != prev.To+1 {
				return nil, fmt.Errorf("route %s does not start where %s ends", r.Adapter.Name(), prev.Adapter.Name())
			}
		}
	}
	return &Router{routes: routes}, nil
}

// AdapterFor returns the adapter that owns the adjusted height.
func (r *Router) AdapterFor(height uint64) (Adapter, error) {
	for _, route := range r.routes {
		if height < route.From {
			break
		}
		if route.To == 0 || height <= route.To {
			return route.Adapter, nil
		}
	}
	return nil, fmt.Errorf("no chain source owns height %d", height)
}

// LatestAvailableHeight reports the newest height any route can serve,
// which is the active chain's tip.
func (r *Router) LatestAvailableHeight(ctx context.Context) (uint64, error) {
	return r.routes[len(r.routes)-1].Adapter.GetLatestAvailableHeight(ctx)
}
