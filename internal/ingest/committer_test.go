package ingest_test

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/DrGermanius/orderingest/internal/ingest"
	"github.com/DrGermanius/orderingest/internal/memstore"
	"github.com/DrGermanius/orderingest/internal/model"
)

type shortStore struct{}

func (shortStore) BulkInsert(_ context.Context, orders []model.Order) (int, error) {
	return len(orders) - 1, nil
}

type plainErrStore struct{ err error }

func (s plainErrStore) BulkInsert(context.Context, []model.Order) (int, error) {
	return 0, s.err
}

func draft(id string) model.OrderDraft {
	return model.OrderDraft{
		OrderID:      id,
		CustomerID:   "CUST-00001",
		ProductID:    "PROD-00001",
		Quantity:     2,
		PricePerUnit: decimal.RequireFromString("1.50"),
		TotalAmount:  decimal.RequireFromString("3.00"),
		OrderDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:       model.OrderStatusPending,
	}
}

var _ = Describe("Committer", func() {
	ctx := context.Background()

	It("does nothing for an empty batch", func() {
		store := memstore.New()
		orders, err := ingest.NewCommitter(store, time.Second).Commit(ctx, nil)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(orders).Should(BeEmpty())
		Expect(store.Len()).Should(Equal(0))
	})

	It("stamps every order with one utc creation time", func() {
		store := memstore.New()
		orders, err := ingest.NewCommitter(store, time.Second).Commit(ctx, []model.OrderDraft{draft("ORD-00001"), draft("ORD-00002")})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(orders).Should(HaveLen(2))
		Expect(orders[0].CreatedAt).Should(Equal(orders[1].CreatedAt))
		Expect(orders[0].CreatedAt.Location()).Should(Equal(time.UTC))
		Expect(store.Len()).Should(Equal(2))
	})

	It("wraps plain store errors", func() {
		_, err := ingest.NewCommitter(plainErrStore{errors.New("boom")}, 0).Commit(ctx, []model.OrderDraft{draft("ORD-00001")})

		var se *ingest.StoreError
		Expect(errors.As(err, &se)).Should(BeTrue())
		Expect(se.Kind).Should(Equal(ingest.StoreOther))
	})

	It("treats a short insert as a failure", func() {
		orders, err := ingest.NewCommitter(shortStore{}, 0).Commit(ctx, []model.OrderDraft{draft("ORD-00001"), draft("ORD-00002")})
		Expect(err).Should(HaveOccurred())
		Expect(orders).Should(BeNil())
	})
})

var _ = Describe("Aggregate", func() {
	It("sorts by row and truncates the sample", func() {
		var errs []model.IngestionError
		for row := 15; row >= 1; row-- {
			errs = append(errs, model.IngestionError{Row: row, Error: "bad"})
		}

		res := ingest.Aggregate(20, 5, errs, nil)
		Expect(res.Status).Should(Equal(model.ResultStatusCompleted))
		Expect(res.TotalSubmitted).Should(Equal(20))
		Expect(res.Successful).Should(Equal(5))
		Expect(res.Failed).Should(Equal(15))
		Expect(res.Errors).Should(HaveLen(10))
		Expect(res.Errors[0].Row).Should(Equal(1))
		Expect(res.Errors[9].Row).Should(Equal(10))
		Expect(res.StoreError).Should(BeNil())
	})

	It("reports the store failure", func() {
		res := ingest.Aggregate(1, 0, []model.IngestionError{{Row: 1}}, ingest.NewStoreError(ingest.StoreTimeout, context.DeadlineExceeded))
		Expect(res.StoreError).Should(Equal(&model.StoreFailure{Kind: "timeout", Message: "context deadline exceeded"}))
	})
})
