// Package core hosts the housing engines: project visibility, the housing
// request lifecycle, officer assignment and enquiry ticketing. Every mutation
// runs inside one store transaction together with the invariant rules.
package core

import (
	"context"
	"time"

	"housingcore/internal/infra/persistence/memory"
	"housingcore/internal/validation"
	"housingcore/pkg/domain"

	"github.com/go-playground/validator/v10"
)

// Service exposes the engine operations over a persistent store.
type Service struct {
	store   domain.PersistentStore
	engine  *RulesEngine
	now     func() time.Time
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer

	validate *validator.Validate
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	clock   Clock
}

// WithLogger sets the logger used for operation outcomes.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the recorder receiving mutation audit entries.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the recorder observing operation latency.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer used to wrap operations in spans.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithClock sets the clock. Stores that stamp records are switched to it too.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		o.clock = clock
	}
}

type nowFuncProvider interface {
	NowFunc() func() time.Time
}

type nowFuncSetter interface {
	SetNowFunc(func() time.Time)
}

type rulesEngineProvider interface {
	RulesEngine() *RulesEngine
}

// NewService constructs a service over store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	options := serviceOptions{
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.clock != nil {
		if setter, ok := store.(nowFuncSetter); ok {
			setter.SetNowFunc(options.clock.Now)
		}
	}
	return &Service{
		store:   store,
		engine:  extractRulesEngine(store),
		now:     selectNowFunc(store, options.clock),
		logger:  options.logger,
		audit:   options.audit,
		metrics: options.metrics,
		tracer:  options.tracer,

		validate: validation.New(),
	}
}

// NewInMemoryService builds a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() domain.PersistentStore { return s.store }

// RulesEngine returns the engine evaluated inside each transaction, if the
// store exposes one.
func (s *Service) RulesEngine() *RulesEngine { return s.engine }

// Now reports the service clock.
func (s *Service) Now() time.Time { return s.now() }

func extractRulesEngine(store domain.PersistentStore) *RulesEngine {
	if provider, ok := store.(rulesEngineProvider); ok {
		return provider.RulesEngine()
	}
	return nil
}

// selectNowFunc prefers the store's clock so service reads and stamped
// records agree, then the configured clock, then system UTC time.
func selectNowFunc(store domain.PersistentStore, clock Clock) func() time.Time {
	if provider, ok := store.(nowFuncProvider); ok {
		if fn := provider.NowFunc(); fn != nil {
			return func() time.Time { return fn().UTC() }
		}
	}
	if clock != nil {
		return clock.Now
	}
	return func() time.Time { return time.Now().UTC() }
}

// mutate runs fn in a transaction and reports the outcome to the logger,
// tracer, metrics and audit recorders. fn returns the id of the record it
// touched.
func (s *Service) mutate(ctx context.Context, op, actorID string, fn func(tx domain.Transaction) (string, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	elapsed := time.Since(started)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	span.End(err)
	if err != nil {
		s.logger.Warn("housing operation failed", "operation", op, "actor_id", actorID, "error", err)
		s.recordAudit(ctx, op, entityID, actorID, elapsed, err)
		return res, err
	}
	for _, v := range res.Violations {
		s.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "message", v.Message)
	}
	s.logger.Debug("housing operation committed", "operation", op, "actor_id", actorID, "entity_id", entityID)
	s.recordAudit(ctx, op, entityID, actorID, elapsed, nil)
	return res, nil
}

// read runs fn against a snapshot with tracing and metrics but no audit.
func (s *Service) read(ctx context.Context, op string, fn func(view domain.TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	started := time.Now()
	err := s.store.View(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)
	if err != nil {
		s.logger.Debug("housing query failed", "operation", op, "error", err)
	}
	return err
}

func (s *Service) recordAudit(ctx context.Context, op, entityID, actorID string, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		ActorID:   actorID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// Check evaluates every registered rule against the whole registry.
func (s *Service) Check(ctx context.Context) (Result, error) {
	if s.engine == nil {
		return Result{}, nil
	}
	var res Result
	err := s.read(ctx, "check", func(view domain.TransactionView) error {
		var err error
		res, err = s.engine.Evaluate(ctx, view, nil)
		return err
	})
	return res, err
}

func findPerson(view domain.RuleView, id string) (Person, error) {
	p, ok := view.FindPerson(id)
	if !ok {
		return Person{}, domain.ErrNotFound{Entity: EntityPerson, ID: id}
	}
	return p, nil
}

func findProject(view domain.RuleView, name string) (Project, error) {
	p, ok := view.FindProject(name)
	if !ok {
		return Project{}, domain.ErrNotFound{Entity: EntityProject, ID: name}
	}
	return p, nil
}
