package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DrGermanius/orderingest/internal/model"
)

const (
	defaultWorkers        = 4
	defaultPublishTimeout = 5 * time.Second
)

// Publisher announces persisted orders. Failures never affect the ingestion result.
type Publisher interface {
	Publish(context.Context, []model.Order) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, []model.Order) error { return nil }

type validRecord struct {
	raw   model.RawRecord
	draft model.OrderDraft
}

type outcome struct {
	draft model.OrderDraft
	err   *model.IngestionError
}

type Pipeline struct {
	committer *Committer
	metrics   Metrics
	publisher Publisher
	logger    *zap.SugaredLogger
	workers   int
	newID     func() string

	publishTimeout time.Duration
}

type Option func(*Pipeline)

func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithCommitTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.committer.timeout = d }
}

// WithPublishTimeout bounds how long a call waits for its order events after the commit.
func WithPublishTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.publishTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.committer.now = now }
}

func NewPipeline(store Store, logger *zap.SugaredLogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		committer: NewCommitter(store, 0),
		metrics:   NopMetrics{},
		publisher: NopPublisher{},
		logger:    logger,
		workers:   defaultWorkers,
		newID:     uuid.NewString,

		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs one batch through parse, validate, commit and report. The returned error is
// ErrInputConflict or ErrMalformedInput; every other failure is reported in the result.
func (p *Pipeline) Ingest(ctx context.Context, payload Payload) (model.IngestionResult, error) {
	batchID := p.newID()
	log := p.logger.With("batch_id", batchID)
	log.Debug("batch received")

	records, err := Parse(payload)
	if err != nil {
		log.Warnf("batch rejected: %s", err.Error())
		return model.IngestionResult{}, err
	}
	log.Debugw("batch parsed", "records", len(records))

	valid, errs := p.validate(records)
	log.Debugw("batch validated", "valid", len(valid), "invalid", len(errs))

	drafts := make([]model.OrderDraft, len(valid))
	for i, v := range valid {
		drafts[i] = v.draft
	}

	start := time.Now()
	orders, err := p.committer.Commit(ctx, drafts)
	if len(drafts) > 0 {
		p.metrics.ObserveCommit(time.Since(start))
	}

	var storeErr *StoreError
	if err != nil {
		storeErr = AsStoreError(err)
		log.Errorf("batch commit failed, %d valid orders not persisted: %s", len(drafts), storeErr.Error())
		p.metrics.IngestionFailed(storeErr.Kind)
		errs = append(errs, commitFailures(valid, storeErr)...)
	} else {
		log.Debugw("batch committed", "inserted", len(orders))
		if len(orders) > 0 {
			p.publish(ctx, log, orders)
		}
	}

	res := Aggregate(len(records), len(orders), errs, storeErr)
	res.BatchID = batchID
	p.metrics.IngestionCompleted(res.TotalSubmitted, res.Successful, res.Failed)

	log.Infow("batch reported",
		"total_submitted", res.TotalSubmitted,
		"successful", res.Successful,
		"failed", res.Failed,
	)
	return res, nil
}

func (p *Pipeline) publish(ctx context.Context, log *zap.SugaredLogger, orders []model.Order) {
	ctx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	if err := p.publisher.Publish(ctx, orders); err != nil {
		log.Errorf("publishing order events: %s", err.Error())
	}
}

// validate checks records concurrently. Outcomes are stored by index so input order survives.
func (p *Pipeline) validate(records []model.RawRecord) ([]validRecord, []model.IngestionError) {
	outcomes := make([]outcome, len(records))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range records {
		i := i
		g.Go(func() error {
			d, ierr := ValidateSafe(records[i])
			outcomes[i] = outcome{draft: d, err: ierr}
			return nil
		})
	}
	_ = g.Wait()

	var (
		valid []validRecord
		errs  []model.IngestionError
	)
	for i, o := range outcomes {
		if o.err != nil {
			errs = append(errs, *o.err)
			continue
		}
		valid = append(valid, validRecord{raw: records[i], draft: o.draft})
	}
	return valid, errs
}
