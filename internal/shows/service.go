// Package shows is the application service of the journal. It validates
// and stamps records before they reach the RecordStore, and serves every
// read view by handing a snapshot of the store to the journal package.
package shows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kalambet/stagelog/internal/journal"
	"github.com/kalambet/stagelog/internal/metrics"
)

// RecordStore persists the record set. Implemented by storage.ArrayStore.
type RecordStore interface {
	List(ctx context.Context) ([]journal.Record, error)
	Get(ctx context.Context, id string) (journal.Record, error)
	Insert(ctx context.Context, rec journal.Record) error
	Update(ctx context.Context, id string, rec journal.Record) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) ([]journal.Record, error)
	Raw(ctx context.Context) ([]byte, error)
}

// Mirror receives every successful mutation. Implemented by mirror.Outbox.
type Mirror interface {
	QueueUpsert(rec journal.Record) error
	QueueDelete(id string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Service. Only Store is required.
type Options struct {
	Store    RecordStore
	Mirror   Mirror
	Clock    Clock
	Location *time.Location
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	NewID    func() string
}

// Service implements the journal operations on top of a RecordStore.
type Service struct {
	store   RecordStore
	mirror  Mirror
	clock   Clock
	loc     *time.Location
	logger  *zap.Logger
	metrics *metrics.Metrics
	newID   func() string
}

func New(opts Options) *Service {
	s := &Service{
		store:   opts.Store,
		mirror:  opts.Mirror,
		clock:   opts.Clock,
		loc:     opts.Location,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		newID:   opts.NewID,
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Today is the current calendar date in the journal's time zone.
func (s *Service) Today() journal.Date {
	return journal.DateOf(s.clock.Now().In(s.loc))
}

// Create validates input, assigns an id when it has none, stamps its status
// and inserts it.
func (s *Service) Create(ctx context.Context, input journal.Record) (journal.Record, error) {
	rec, err := s.prepare(input)
	if err != nil {
		s.countMutation("create", err)
		return journal.Record{}, err
	}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		s.countMutation("create", err)
		return journal.Record{}, fmt.Errorf("saving record: %w", err)
	}
	s.countMutation("create", nil)
	s.logger.Info("record created", zap.String("record_id", rec.ID), zap.String("status", string(rec.Status)))
	s.queueUpsert(rec)
	return rec, nil
}

// Update replaces the record with id by input. The id is not changeable.
func (s *Service) Update(ctx context.Context, id string, input journal.Record) (journal.Record, error) {
	rec, err := s.prepare(input)
	if err != nil {
		s.countMutation("update", err)
		return journal.Record{}, err
	}
	rec.ID = id
	if err := s.store.Update(ctx, id, rec); err != nil {
		s.countMutation("update", err)
		return journal.Record{}, fmt.Errorf("updating record: %w", err)
	}
	s.countMutation("update", nil)
	s.logger.Info("record updated", zap.String("record_id", id), zap.String("status", string(rec.Status)))
	s.queueUpsert(rec)
	return rec, nil
}

// Delete removes the record with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.countMutation("delete", err)
		return fmt.Errorf("deleting record: %w", err)
	}
	s.countMutation("delete", nil)
	s.logger.Info("record deleted", zap.String("record_id", id))
	s.queueDelete(id)
	return nil
}

// Clear removes every record and returns how many were removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	recs, err := s.store.Clear(ctx)
	if err != nil {
		s.countMutation("clear", err)
		return 0, fmt.Errorf("clearing records: %w", err)
	}
	s.countMutation("clear", nil)
	s.logger.Warn("all records cleared", zap.Int("count", len(recs)))
	for _, r := range recs {
		s.queueDelete(r.ID)
	}
	return len(recs), nil
}

// Get returns the record with id.
func (s *Service) Get(ctx context.Context, id string) (journal.Record, error) {
	return s.store.Get(ctx, id)
}

// List returns every record in stored order.
func (s *Service) List(ctx context.Context) ([]journal.Record, error) {
	return s.store.List(ctx)
}

// Export returns the persisted record array as stored.
func (s *Service) Export(ctx context.Context) ([]byte, error) {
	return s.store.Raw(ctx)
}

// prepare validates input and returns the record that will be persisted.
func (s *Service) prepare(input journal.Record) (journal.Record, error) {
	if err := journal.Validate(input); err != nil {
		return journal.Record{}, err
	}
	rec := input.Clone()
	rec.Price = journal.NewPrice(rec.Price.Float64())
	if rec.Cast == nil {
		rec.Cast = []journal.CastMember{}
	}
	d, _ := rec.ParsedDate()
	// Store the canonical form so lenient inputs sort and match like the rest.
	rec.Date = d.String()
	stamped, err := journal.StampStatus(rec, s.Today())
	if err != nil {
		return journal.Record{}, err
	}
	return stamped, nil
}

func (s *Service) queueUpsert(rec journal.Record) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.QueueUpsert(rec); err != nil {
		s.logger.Error("queueing mirror upsert", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

func (s *Service) queueDelete(id string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.QueueDelete(id); err != nil {
		s.logger.Error("queueing mirror delete", zap.String("record_id", id), zap.Error(err))
	}
}

func (s *Service) countMutation(op string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	var ve *journal.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &ve):
		result = "invalid"
	default:
		result = "error"
	}
	s.metrics.Mutations.WithLabelValues(op, result).Inc()
}

// warn logs and counts records a view skipped.
func (s *Service) warn(view string, warnings []journal.MalformedDate) {
	for _, w := range warnings {
		s.logger.Warn("skipping record with malformed date",
			zap.String("view", view),
			zap.String("record_id", w.RecordID),
			zap.String("value", w.Value))
	}
	if s.metrics != nil && len(warnings) > 0 {
		s.metrics.MalformedDates.Add(float64(len(warnings)))
	}
}
