// Package memory provides the transactional engine behind every inspection
// store. State lives in process memory; durable backends attach a commit hook
// that must succeed before a transaction's state becomes visible.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"inspectcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var (
	_ domain.PersistentStore = (*Store)(nil)
	_ domain.Transaction     = (*transaction)(nil)
	_ domain.TransactionView = transactionView{}
)

type memoryState struct {
	clients      map[string]domain.Client
	orders       map[string]domain.Order
	rooms        map[string]domain.Room
	points       map[string]domain.Point
	measurements map[string]domain.Measurement
	visuals      map[string]domain.VisualInspection
}

// Snapshot captures a point-in-time copy of the store state. Durable backends
// build one from their tables to hydrate the engine.
type Snapshot struct {
	Clients           map[string]domain.Client           `json:"clients"`
	Orders            map[string]domain.Order            `json:"orders"`
	Rooms             map[string]domain.Room             `json:"rooms"`
	Points            map[string]domain.Point            `json:"points"`
	Measurements      map[string]domain.Measurement      `json:"measurements"`
	VisualInspections map[string]domain.VisualInspection `json:"visual_inspections"`
}

func newMemoryState() memoryState {
	return memoryState{
		clients:      make(map[string]domain.Client),
		orders:       make(map[string]domain.Order),
		rooms:        make(map[string]domain.Room),
		points:       make(map[string]domain.Point),
		measurements: make(map[string]domain.Measurement),
		visuals:      make(map[string]domain.VisualInspection),
	}
}

// clone copies the maps. Records are stored as private copies and replaced
// rather than mutated, so a shallow map copy isolates the transaction.
func (s memoryState) clone() memoryState {
	return memoryState{
		clients:      copyMap(s.clients),
		orders:       copyMap(s.orders),
		rooms:        copyMap(s.rooms),
		points:       copyMap(s.points),
		measurements: copyMap(s.measurements),
		visuals:      copyMap(s.visuals),
	}
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CommitHook receives the ordered change log of a transaction before its
// state is published. Returning an error aborts the transaction.
type CommitHook func(ctx context.Context, changes []domain.Change) error

// Option configures a Store.
type Option func(*Store)

// WithCommitHook installs the hook durable backends use to flush changes.
func WithCommitHook(hook CommitHook) Option {
	return func(s *Store) { s.hook = hook }
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFn = now }
}

// WithIDGenerator overrides the identifier source used on create.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// Store provides an in-memory transactional store for the inspection schema.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *domain.RulesEngine
	nowFn  func() time.Time
	newID  func() string
	hook   CommitHook
	closed bool
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportState clones the current store state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Clients:           copyMap(s.state.clients),
		Orders:            copyMap(s.state.orders),
		Rooms:             copyMap(s.state.rooms),
		Points:            copyMap(s.state.points),
		Measurements:      copyMap(s.state.measurements),
		VisualInspections: copyMap(s.state.visuals),
	}
	for k, v := range snap.Orders {
		snap.Orders[k] = v.Clone()
	}
	for k, v := range snap.Points {
		snap.Points[k] = v.Clone()
	}
	for k, v := range snap.Measurements {
		snap.Measurements[k] = v.Clone()
	}
	return snap
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := newMemoryState()
	for k, v := range snapshot.Clients {
		state.clients[k] = v
	}
	for k, v := range snapshot.Orders {
		state.orders[k] = v.Clone()
	}
	for k, v := range snapshot.Rooms {
		state.rooms[k] = v
	}
	for k, v := range snapshot.Points {
		state.points[k] = v.Clone()
	}
	for k, v := range snapshot.Measurements {
		state.measurements[k] = v.Clone()
	}
	for k, v := range snapshot.VisualInspections {
		state.visuals[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine {
	return s.engine
}

// RunInTransaction executes fn against a private copy of the state. The copy
// is published only when fn succeeds, no rule blocks, and the commit hook
// (if any) accepts the change log. Writers are serialized for the whole
// duration, durable flush included.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Result{}, closedError("run_in_transaction")
	}
	if err := ctx.Err(); err != nil {
		return domain.Result{}, domain.NewStorageError("run_in_transaction", err)
	}

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, transactionView{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, domain.NewStorageError("evaluate_rules", err)
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if s.hook != nil && len(tx.changes) > 0 {
		if err := s.hook(ctx, tx.changes); err != nil {
			return result, domain.NewStorageError("commit", err)
		}
	}
	s.state = tx.state
	return result, nil
}

// View executes fn against the committed state. Writers are excluded while
// fn runs, so fn observes either the state before or after any transaction.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return closedError("view")
	}
	return fn(transactionView{state: &s.state})
}

// Close marks the store closed; later operations fail with a storage error.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func closedError(op string) error {
	return &domain.Error{Kind: domain.KindStorage, Op: op, Message: "store is closed", Cause: domain.ErrStoreClosed}
}
