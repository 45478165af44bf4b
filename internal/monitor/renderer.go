package monitor

import (
	"context"
	"sync"

	"github.com/web3-frozen/market-snapshot/internal/market"
)

type onceRenderer struct {
	Renderer
	mu   sync.Mutex
	done bool
}

// RenderOnce wraps r so it writes only on the first call that succeeds.
// Later calls are no-ops; a failed call leaves the gate open.
func RenderOnce(r Renderer) Renderer {
	return &onceRenderer{Renderer: r}
}

func (o *onceRenderer) Render(ctx context.Context, records []market.Record, a *market.Analysis) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return nil
	}
	if err := o.Renderer.Render(ctx, records, a); err != nil {
		return err
	}
	o.done = true
	return nil
}
