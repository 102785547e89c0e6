package ingest

import (
	"fmt"
	"sort"

	"github.com/DrGermanius/orderingest/internal/model"
)

// Aggregate builds the caller-facing summary. errs may be in any order; the reported sample is
// the first model.MaxReportedErrors by row.
func Aggregate(total, inserted int, errs []model.IngestionError, storeErr *StoreError) model.IngestionResult {
	sorted := make([]model.IngestionError, len(errs))
	copy(sorted, errs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Row < sorted[j].Row })

	if len(sorted) > model.MaxReportedErrors {
		sorted = sorted[:model.MaxReportedErrors]
	}

	res := model.IngestionResult{
		Status:         model.ResultStatusCompleted,
		TotalSubmitted: total,
		Successful:     inserted,
		Failed:         len(errs),
		Errors:         sorted,
	}
	if storeErr != nil {
		res.StoreError = &model.StoreFailure{Kind: string(storeErr.Kind), Message: storeErr.Message()}
	}
	return res
}

// commitFailures reports every draft that was valid but not persisted.
func commitFailures(valid []validRecord, storeErr *StoreError) []model.IngestionError {
	errs := make([]model.IngestionError, 0, len(valid))
	for _, v := range valid {
		errs = append(errs, model.IngestionError{
			Row:   v.raw.Row,
			Data:  v.raw.Fields,
			Error: "not persisted: " + storeErr.Error(),
		})
	}
	return errs
}

func errInsertCount(got, want int) error {
	return fmt.Errorf("store inserted %d of %d orders", got, want)
}
