package internal_test

import (
	"context"
	"errors"

	"github.com/golang/mock/gomock"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/DrGermanius/orderingest/internal"
	"github.com/DrGermanius/orderingest/internal/ingest"
	mock_internal "github.com/DrGermanius/orderingest/internal/mock"
	"github.com/DrGermanius/orderingest/internal/model"
)

var _ = Describe("Service", func() {
	var (
		srv  internal.IService
		rep  *mock_internal.MockIRepository
		ing  *mock_internal.MockIngester
		ctrl *gomock.Controller
		ctx  context.Context
	)
	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		ctx = context.Background()

		logger, err := zap.NewDevelopment()
		Expect(err).ShouldNot(HaveOccurred())

		rep = mock_internal.NewMockIRepository(ctrl)
		ing = mock_internal.NewMockIngester(ctrl)

		srv = internal.NewService(rep, ing, logger.Sugar())
	})
	AfterEach(func() {
		ctrl.Finish()
	})
	Context("Service tests", func() {
		It("Ingest delegates to the pipeline", func() {
			p := ingest.Payload{Records: []interface{}{}}
			want := model.IngestionResult{Status: model.ResultStatusCompleted, Errors: []model.IngestionError{}}

			ing.EXPECT().Ingest(ctx, p).Return(want, nil)

			res, err := srv.Ingest(ctx, p)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(res).Should(Equal(want))
		})
		It("Ingest with error", func() {
			ing.EXPECT().Ingest(ctx, ingest.Payload{}).Return(model.IngestionResult{}, ingest.ErrInputConflict)

			_, err := srv.Ingest(ctx, ingest.Payload{})
			Expect(err).Should(Equal(ingest.ErrInputConflict))
		})
		It("GetOrder without error", func() {
			o := model.Order{ID: 1, OrderID: "ORD-00001"}
			rep.EXPECT().GetOrderByOrderID(ctx, "ORD-00001").Return(o, nil)

			got, err := srv.GetOrder(ctx, "ORD-00001")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(got).Should(Equal(o))
		})
		It("GetOrder not found", func() {
			rep.EXPECT().GetOrderByOrderID(ctx, "ORD-00001").Return(model.Order{}, internal.ErrNoRecords)

			_, err := srv.GetOrder(ctx, "ORD-00001")
			Expect(err).Should(Equal(internal.ErrNoRecords))
		})
		It("GetOrders applies the default limit", func() {
			rep.EXPECT().ListOrders(ctx, model.OrderFilter{Status: "shipped", Limit: 100}).Return(nil, nil)

			orders, err := srv.GetOrders(ctx, model.OrderFilter{Status: "shipped"})
			Expect(err).ShouldNot(HaveOccurred())
			Expect(orders).ShouldNot(BeNil())
			Expect(orders).Should(BeEmpty())
		})
		It("GetOrders with invalid filters", func() {
			for _, f := range []model.OrderFilter{
				{Skip: -1},
				{Limit: -1},
				{Limit: 1001},
				{Status: "lost"},
			} {
				_, err := srv.GetOrders(ctx, f)
				Expect(errors.Is(err, internal.ErrInvalidFilter)).Should(BeTrue())
			}
		})
		It("GetOrders with error", func() {
			e := errors.New("some error")
			rep.EXPECT().ListOrders(ctx, gomock.Any()).Return(nil, e)

			_, err := srv.GetOrders(ctx, model.OrderFilter{})
			Expect(err).Should(Equal(e))
		})
		It("Ready pings the store", func() {
			rep.EXPECT().Ping(ctx).Return(nil)
			Expect(srv.Ready(ctx)).Should(Succeed())

			rep.EXPECT().Ping(ctx).Return(errors.New("some error"))
			Expect(srv.Ready(ctx)).ShouldNot(Succeed())
		})
	})
})
