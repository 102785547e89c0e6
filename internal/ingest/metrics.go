package ingest

import "time"

// Metrics receives pipeline observations.
type Metrics interface {
	IngestionCompleted(submitted, successful, failed int)
	IngestionFailed(kind StoreErrorKind)
	ObserveCommit(time.Duration)
}

type NopMetrics struct{}

func (NopMetrics) IngestionCompleted(int, int, int) {}
func (NopMetrics) IngestionFailed(StoreErrorKind)   {}
func (NopMetrics) ObserveCommit(time.Duration)      {}
