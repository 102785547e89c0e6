package ingest

import (
	"context"
	"time"

	"github.com/DrGermanius/orderingest/internal/model"
)

// Store persists orders. BulkInsert must be atomic: either every order is inserted or none is.
// Failures should be reported as *StoreError so constraint violations stay distinguishable.
type Store interface {
	BulkInsert(context.Context, []model.Order) (int, error)
}

type Committer struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

func NewCommitter(store Store, timeout time.Duration) *Committer {
	return &Committer{store: store, timeout: timeout, now: time.Now}
}

// Commit inserts all drafts in one atomic store call and returns them as persisted orders.
// On failure nothing is returned and the error is a *StoreError.
func (c *Committer) Commit(ctx context.Context, drafts []model.OrderDraft) ([]model.Order, error) {
	if len(drafts) == 0 {
		return nil, nil
	}

	createdAt := c.now().UTC()
	orders := make([]model.Order, len(drafts))
	for i, d := range drafts {
		orders[i] = model.NewOrder(d, createdAt)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	n, err := c.store.BulkInsert(ctx, orders)
	if err != nil {
		return nil, AsStoreError(err)
	}
	if n != len(orders) {
		return nil, NewStoreError(StoreOther, errInsertCount(n, len(orders)))
	}
	return orders, nil
}
