package main

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/weft/internal/pool"
)

// acquireRunSlot admits this run into the resource pool. The pool bounds
// concurrent orchestrator instances, not individual tool calls: one
// lease is held from before the orchestrator is built until the run
// finishes, so concurrent weft runs sharing a pool queue behind the
// adaptive limit while tasks within a run parallelize freely.
func acquireRunSlot(ctx context.Context, mgr *pool.Manager, priority int) (*pool.Lease, error) {
	lease, err := mgr.Acquire(ctx, priority)
	if err != nil {
		return nil, fmt.Errorf("acquire run slot: %w", err)
	}
	return lease, nil
}
