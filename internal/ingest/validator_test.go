package ingest_test

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/DrGermanius/orderingest/internal/ingest"
	"github.com/DrGermanius/orderingest/internal/model"
)

func validFields() map[string]interface{} {
	return map[string]interface{}{
		"order_id":       "ORD-10001",
		"customer_id":    "CUST-20001",
		"product_id":     "PROD-30001",
		"quantity":       json.Number("3"),
		"price_per_unit": json.Number("19.99"),
		"order_date":     "2024-01-15T10:30:00Z",
		"status":         "shipped",
	}
}

func with(key string, value interface{}) map[string]interface{} {
	f := validFields()
	if value == nil {
		delete(f, key)
	} else {
		f[key] = value
	}
	return f
}

func violatedFields(err error) []string {
	verr, ok := err.(*ingest.ValidationError)
	Expect(ok).Should(BeTrue())

	var names []string
	for _, v := range verr.Violations {
		names = append(names, v.Field)
	}
	return names
}

var _ = Describe("Validator", func() {
	It("builds a draft and computes the total exactly", func() {
		d, err := ingest.Validate(model.RawRecord{Row: 1, Fields: validFields()})
		Expect(err).ShouldNot(HaveOccurred())

		Expect(d.OrderID).Should(Equal("ORD-10001"))
		Expect(d.Quantity).Should(Equal(3))
		Expect(d.Status).Should(Equal(model.OrderStatusShipped))
		Expect(d.OrderDate).Should(BeTemporally("==", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))
		Expect(d.TotalAmount.Equal(decimal.RequireFromString("59.97"))).Should(BeTrue())
	})

	It("has no floating point drift", func() {
		d, err := ingest.Validate(model.RawRecord{Row: 1, Fields: with("price_per_unit", "0.10")})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d.TotalAmount.String()).Should(Equal("0.3"))
		Expect(d.TotalAmount.Equal(decimal.NewFromInt(int64(d.Quantity)).Mul(d.PricePerUnit))).Should(BeTrue())
	})

	It("defaults status to pending", func() {
		d, err := ingest.Validate(model.RawRecord{Row: 1, Fields: with("status", nil)})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d.Status).Should(Equal(model.OrderStatusPending))

		d, err = ingest.Validate(model.RawRecord{Row: 1, Fields: with("status", "")})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d.Status).Should(Equal(model.OrderStatusPending))
	})

	It("ignores a caller supplied total_amount", func() {
		d, err := ingest.Validate(model.RawRecord{Row: 1, Fields: with("total_amount", "1.00")})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d.TotalAmount.Equal(decimal.RequireFromString("59.97"))).Should(BeTrue())
	})

	It("reports every violated field", func() {
		fields := map[string]interface{}{
			"order_id":       "ORD-1234",
			"customer_id":    "",
			"quantity":       json.Number("0"),
			"price_per_unit": json.Number("-1"),
			"order_date":     "yesterday",
			"status":         "lost",
		}
		_, err := ingest.Validate(model.RawRecord{Row: 1, Fields: fields})
		Expect(err).Should(HaveOccurred())
		Expect(violatedFields(err)).Should(ConsistOf(
			"order_id", "customer_id", "product_id", "quantity", "price_per_unit", "order_date", "status",
		))
	})

	It("rejects a record that is not an object", func() {
		_, err := ingest.Validate(model.RawRecord{Row: 1})
		Expect(violatedFields(err)).Should(Equal([]string{"record"}))
	})

	DescribeTable("single field rules",
		func(key string, value interface{}, ok bool) {
			_, err := ingest.Validate(model.RawRecord{Row: 1, Fields: with(key, value)})
			if ok {
				Expect(err).ShouldNot(HaveOccurred())
				return
			}
			Expect(violatedFields(err)).Should(Equal([]string{key}))
		},
		Entry("order id with 4 digits", "order_id", "ORD-1234", false),
		Entry("order id with 5 digits", "order_id", "ORD-12345", true),
		Entry("order id with many digits", "order_id", "ORD-1234567890", true),
		Entry("order id lower case prefix", "order_id", "ord-12345", false),
		Entry("order id trailing text", "order_id", "ORD-12345x", false),
		Entry("order id not a string", "order_id", json.Number("12345"), false),
		Entry("customer id wrong prefix", "customer_id", "CUS-12345", false),
		Entry("product id missing", "product_id", nil, false),
		Entry("quantity zero", "quantity", json.Number("0"), false),
		Entry("quantity negative", "quantity", json.Number("-1"), false),
		Entry("quantity fractional", "quantity", json.Number("1.5"), false),
		Entry("quantity integral float", "quantity", json.Number("2.0"), true),
		Entry("quantity csv string", "quantity", "7", true),
		Entry("quantity text", "quantity", "seven", false),
		Entry("quantity bool", "quantity", true, false),
		Entry("quantity overflow", "quantity", json.Number("3000000000"), false),
		Entry("quantity huge float", "quantity", 1e30, false),
		Entry("quantity float", "quantity", float64(4), true),
		Entry("price zero", "price_per_unit", json.Number("0"), false),
		Entry("price negative", "price_per_unit", json.Number("-5.00"), false),
		Entry("price three decimals", "price_per_unit", json.Number("1.005"), false),
		Entry("price trailing zeros", "price_per_unit", json.Number("1.500"), true),
		Entry("price csv string", "price_per_unit", "12.50", true),
		Entry("price text", "price_per_unit", "cheap", false),
		Entry("order date missing", "order_date", nil, false),
		Entry("order date plain date", "order_date", "2024-01-15", true),
		Entry("order date with space", "order_date", "2024-01-15 08:00:00", true),
		Entry("order date offset", "order_date", "2024-01-15T08:00:00+02:00", true),
		Entry("order date unix seconds", "order_date", json.Number("1705312200"), true),
		Entry("order date invalid", "order_date", "2024-13-45", false),
		Entry("order date unix seconds overflow", "order_date", json.Number("1e30"), false),
		Entry("order date unix seconds past year 9999", "order_date", json.Number("99999999999999"), false),
		Entry("order date unix seconds before year 1", "order_date", json.Number("-99999999999999"), false),
		Entry("order date float past year 9999", "order_date", 1e20, false),
		Entry("order date offset before year 1", "order_date", "0001-01-01T00:00:00+01:00", false),
		Entry("order id at the column limit", "order_id", "ORD-"+strings.Repeat("1", 251), true),
		Entry("order id over the column limit", "order_id", "ORD-"+strings.Repeat("1", 300), false),
		Entry("customer id over the column limit", "customer_id", "CUST-"+strings.Repeat("1", 300), false),
		Entry("status completed", "status", "completed", true),
		Entry("status cancelled", "status", "cancelled", true),
		Entry("status wrong case", "status", "Pending", false),
	)

	It("explains out of range values", func() {
		fields := with("order_date", json.Number("1e30"))
		fields["quantity"] = 1e30
		fields["order_id"] = "ORD-" + strings.Repeat("1", 300)
		_, err := ingest.Validate(model.RawRecord{Row: 1, Fields: fields})

		var verr *ingest.ValidationError
		Expect(errors.As(err, &verr)).Should(BeTrue())
		Expect(verr.Violations).Should(ConsistOf(
			model.FieldViolation{Field: "order_id", Reason: "must be at most 255 characters"},
			model.FieldViolation{Field: "quantity", Reason: "is too large"},
			model.FieldViolation{Field: "order_date", Reason: "must be between years 1 and 9999"},
		))
	})

	It("rejects totals that do not fit the store", func() {
		fields := with("price_per_unit", "9999999.99")
		fields["quantity"] = json.Number("100")
		_, err := ingest.Validate(model.RawRecord{Row: 1, Fields: fields})
		Expect(violatedFields(err)).Should(Equal([]string{"total_amount"}))
	})

	It("converts offsets to utc", func() {
		d, err := ingest.Validate(model.RawRecord{Row: 1, Fields: with("order_date", "2024-01-15T08:00:00+02:00")})
		Expect(err).ShouldNot(HaveOccurred())
		Expect(d.OrderDate).Should(BeTemporally("==", time.Date(2024, 1, 15, 6, 0, 0, 0, time.UTC)))
	})

	Context("ValidateSafe", func() {
		It("tags failures with the row and raw data", func() {
			fields := with("quantity", json.Number("-1"))
			_, ierr := ingest.ValidateSafe(model.RawRecord{Row: 7, Fields: fields})
			Expect(ierr).ShouldNot(BeNil())
			Expect(ierr.Row).Should(Equal(7))
			Expect(ierr.Data).Should(Equal(fields))
			Expect(ierr.Error).Should(ContainSubstring("quantity"))
			Expect(ierr.Fields).Should(HaveLen(1))
		})
		It("returns no error for a valid record", func() {
			_, ierr := ingest.ValidateSafe(model.RawRecord{Row: 1, Fields: validFields()})
			Expect(ierr).Should(BeNil())
		})
		It("recovers from a panicking validator", func() {
			restore := ingest.SetValidate(func(model.RawRecord) (model.OrderDraft, error) {
				panic("broken rule")
			})
			defer restore()

			fields := validFields()
			_, ierr := ingest.ValidateSafe(model.RawRecord{Row: 4, Fields: fields})
			Expect(ierr).ShouldNot(BeNil())
			Expect(ierr.Row).Should(Equal(4))
			Expect(ierr.Data).Should(Equal(fields))
			Expect(ierr.Error).Should(Equal("unexpected error: broken rule"))
		})
		It("tags non-validation errors as unexpected", func() {
			restore := ingest.SetValidate(func(model.RawRecord) (model.OrderDraft, error) {
				return model.OrderDraft{}, errors.New("lookup failed")
			})
			defer restore()

			_, ierr := ingest.ValidateSafe(model.RawRecord{Row: 1, Fields: validFields()})
			Expect(ierr.Error).Should(Equal("unexpected error: lookup failed"))
			Expect(ierr.Fields).Should(BeEmpty())
		})
	})
})
