package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"inspectcore/internal/blob"
	"inspectcore/internal/config"
	"inspectcore/internal/infra/persistence/disabled"
	"inspectcore/internal/infra/persistence/memory"
	"inspectcore/internal/logging"
	"inspectcore/internal/protocol"
	"inspectcore/pkg/domain"
)

var errNoArchive = errors.New("no protocol archive configured")

// ServiceOption configures optional collaborators of a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger  *zap.Logger
	clock   Clock
	audit   AuditRecorder
	metrics MetricsRecorder
	archive blob.Store
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  zap.NewNop(),
		clock:   systemClock{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
	}
}

// WithLogger sets the structured logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used for operation timing.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(audit AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if audit != nil {
			o.audit = audit
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithArchive sets the blob store protocols are archived to.
func WithArchive(archive blob.Store) ServiceOption {
	return func(o *serviceOptions) { o.archive = archive }
}

// Service exposes the transactional inspection operations. It is the error
// boundary: callers only ever see *domain.Error values.
type Service struct {
	store    domain.PersistentStore
	logger   *zap.Logger
	clock    Clock
	audit    AuditRecorder
	metrics  MetricsRecorder
	archive  blob.Store
	registry *prometheus.Registry
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:   store,
		logger:  o.logger,
		clock:   o.clock,
		audit:   o.audit,
		metrics: o.metrics,
		archive: o.archive,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *domain.RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Open builds a service from configuration: logger, persistent store,
// protocol archive and metrics exporter. Options passed by the
// caller take precedence over the configured collaborators.
func Open(ctx context.Context, cfg config.Config, opts ...ServiceOption) (*Service, error) {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "inspectcore")
	if err != nil {
		return nil, err
	}
	metrics, registry, err := openMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	store, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	archive, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	base := []ServiceOption{
		WithLogger(logger),
		WithMetricsRecorder(metrics),
		WithAuditRecorder(NewLoggerAuditRecorder(logger)),
		WithArchive(archive),
	}
	svc := NewService(store, append(base, opts...)...)
	svc.registry = registry
	fields := []zap.Field{
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Bool("persistence", svc.PersistenceEnabled()),
		zap.String("blob_driver", string(archive.Driver())),
		zap.String("metrics_exporter", cfg.Metrics.Exporter),
	}
	if fp, ok := store.(schemaFingerprinter); ok {
		fields = append(fields, zap.String("schema", fp.SchemaFingerprint()))
	}
	svc.logger.Info("service opened", fields...)
	return svc, nil
}

// openMetrics builds the configured recorder. Prometheus collectors go to a
// private registry so several services can live in one process.
func openMetrics(cfg config.Metrics) (MetricsRecorder, *prometheus.Registry, error) {
	switch cfg.Exporter {
	case "", "prometheus":
		registry := prometheus.NewRegistry()
		rec, err := NewPrometheusRecorder(registry, cfg.Namespace)
		if err != nil {
			return nil, nil, err
		}
		return rec, registry, nil
	case "expvar":
		return NewExpvarMetricsRecorder(""), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown metrics exporter %s", cfg.Exporter)
}

// schemaFingerprinter is implemented by the relational stores.
type schemaFingerprinter interface {
	SchemaFingerprint() string
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Gatherer exposes the Prometheus registry created by Open. It is nil for
// services built with NewService or an expvar exporter.
func (s *Service) Gatherer() prometheus.Gatherer {
	if s.registry == nil {
		return nil
	}
	return s.registry
}

// PersistenceEnabled reports whether writes reach a working backend.
func (s *Service) PersistenceEnabled() bool {
	switch s.store.(type) {
	case disabled.Store, *disabled.Store:
		return false
	}
	return true
}

// Close releases the store.
func (s *Service) Close() error {
	if err := s.store.Close(); err != nil {
		s.logger.Error("close store", zap.Error(err))
		return domain.NewStorageError("close", err)
	}
	s.logger.Info("service closed")
	_ = s.logger.Sync()
	return nil
}

// run executes fn in one transaction and records its outcome. Panics raised
// inside fn and unclassified errors are converted into storage errors.
func (s *Service) run(ctx context.Context, op string, entity domain.EntityType, fn func(domain.Transaction) (string, error)) (res domain.Result, err error) {
	start := s.clock.Now()
	var entityID string
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewStorageError(op, fmt.Errorf("panic: %v", r))
		}
		err = s.classify(op, err)
		s.finish(ctx, op, entity, entityID, start, err)
	}()
	res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id, err := fn(tx)
		entityID = id
		return err
	})
	s.logViolations(op, res)
	return res, err
}

// read executes fn against a consistent view.
func (s *Service) read(ctx context.Context, op string, fn func(domain.TransactionView) error) (err error) {
	start := s.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewStorageError(op, fmt.Errorf("panic: %v", r))
		}
		err = s.classify(op, err)
		s.metrics.Observe(ctx, op, err == nil, s.clock.Now().Sub(start))
	}()
	return s.store.View(ctx, fn)
}

func (s *Service) classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rv domain.RuleViolationError
	if errors.As(err, &rv) {
		return rv.AsValidation()
	}
	classified := domain.NewStorageError(op, err)
	if classified.Kind == domain.KindStorage {
		s.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	}
	return classified
}

func (s *Service) finish(ctx context.Context, op string, entity domain.EntityType, entityID string, start time.Time, err error) {
	end := s.clock.Now()
	duration := end.Sub(start)
	s.metrics.Observe(ctx, op, err == nil, duration)
	entry := AuditEntry{
		Operation:  op,
		Entity:     entity,
		EntityID:   entityID,
		Status:     AuditStatusSuccess,
		Duration:   duration,
		OccurredAt: end,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

func (s *Service) logViolations(op string, res domain.Result) {
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation",
			zap.String("op", op),
			zap.String("rule", v.Rule),
			zap.String("severity", string(v.Severity)),
			zap.String("entity_id", v.EntityID),
			zap.String("message", v.Message))
	}
}

// CreateClient validates raw client input and persists it.
func (s *Service) CreateClient(ctx context.Context, in domain.ClientInput) (domain.Client, domain.Result, error) {
	var created domain.Client
	res, err := s.run(ctx, "create_client", domain.EntityClient, func(tx domain.Transaction) (string, error) {
		c, err := domain.NewClient(in)
		if err != nil {
			return "", err
		}
		created, err = tx.CreateClient(c)
		return created.ID, err
	})
	return created, res, err
}

// UpdateClient mutates a client using the provided mutator.
func (s *Service) UpdateClient(ctx context.Context, id string, mutator func(*domain.Client) error) (domain.Client, domain.Result, error) {
	var updated domain.Client
	res, err := s.run(ctx, "update_client", domain.EntityClient, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateClient(id, mutator)
		return id, err
	})
	return updated, res, err
}

// DeleteClient removes a client without orders.
func (s *Service) DeleteClient(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_client", domain.EntityClient, func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteClient(id)
	})
}

// CreateOrder validates raw order input and persists it.
func (s *Service) CreateOrder(ctx context.Context, in domain.OrderInput) (domain.Order, domain.Result, error) {
	var created domain.Order
	res, err := s.run(ctx, "create_order", domain.EntityOrder, func(tx domain.Transaction) (string, error) {
		o, err := domain.NewOrder(in)
		if err != nil {
			return "", err
		}
		created, err = tx.CreateOrder(o)
		return created.ID, err
	})
	return created, res, err
}

// UpdateOrder mutates an order using the provided mutator.
func (s *Service) UpdateOrder(ctx context.Context, id string, mutator func(*domain.Order) error) (domain.Order, domain.Result, error) {
	var updated domain.Order
	res, err := s.run(ctx, "update_order", domain.EntityOrder, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateOrder(id, mutator)
		return id, err
	})
	return updated, res, err
}

// SetOrderStatus moves an order to status. Any transition is accepted.
func (s *Service) SetOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, domain.Result, error) {
	return s.UpdateOrder(ctx, id, func(o *domain.Order) error {
		o.Status = status
		return nil
	})
}

// DeleteOrder removes an order with its rooms, points, measurements and
// visual inspections.
func (s *Service) DeleteOrder(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_order", domain.EntityOrder, func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteOrder(id)
	})
}

// CreateRoom validates raw room input and persists it.
func (s *Service) CreateRoom(ctx context.Context, in domain.RoomInput) (domain.Room, domain.Result, error) {
	var created domain.Room
	res, err := s.run(ctx, "create_room", domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		r, err := domain.NewRoom(in)
		if err != nil {
			return "", err
		}
		created, err = tx.CreateRoom(r)
		return created.ID, err
	})
	return created, res, err
}

// UpdateRoom mutates a room using the provided mutator.
func (s *Service) UpdateRoom(ctx context.Context, id string, mutator func(*domain.Room) error) (domain.Room, domain.Result, error) {
	var updated domain.Room
	res, err := s.run(ctx, "update_room", domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateRoom(id, mutator)
		return id, err
	})
	return updated, res, err
}

// DeleteRoom removes a room; its points stay on the order unassigned.
func (s *Service) DeleteRoom(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_room", domain.EntityRoom, func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteRoom(id)
	})
}

// CreatePoint validates raw point input and persists it.
func (s *Service) CreatePoint(ctx context.Context, in domain.PointInput) (domain.Point, domain.Result, error) {
	var created domain.Point
	res, err := s.run(ctx, "create_point", domain.EntityPoint, func(tx domain.Transaction) (string, error) {
		p, err := domain.NewPoint(in)
		if err != nil {
			return "", err
		}
		created, err = tx.CreatePoint(p)
		return created.ID, err
	})
	return created, res, err
}

// UpdatePoint mutates a point using the provided mutator.
func (s *Service) UpdatePoint(ctx context.Context, id string, mutator func(*domain.Point) error) (domain.Point, domain.Result, error) {
	var updated domain.Point
	res, err := s.run(ctx, "update_point", domain.EntityPoint, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdatePoint(id, mutator)
		return id, err
	})
	return updated, res, err
}

// AssignPointRoom moves a point into roomID, or out of any room when roomID
// is empty.
func (s *Service) AssignPointRoom(ctx context.Context, pointID, roomID string) (domain.Point, domain.Result, error) {
	return s.UpdatePoint(ctx, pointID, func(p *domain.Point) error {
		if roomID == "" {
			p.RoomID = nil
			return nil
		}
		p.RoomID = &roomID
		return nil
	})
}

// DeletePoint removes a point with its measurement and visual inspection.
func (s *Service) DeletePoint(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_point", domain.EntityPoint, func(tx domain.Transaction) (string, error) {
		return id, tx.DeletePoint(id)
	})
}

// RecordMeasurement parses raw form readings for a point and stores them as
// the point's measurement, replacing an earlier one. The point status is
// recomputed in the same transaction.
func (s *Service) RecordMeasurement(ctx context.Context, pointID string, raw map[domain.Field]any, notes string) (domain.Measurement, domain.Result, error) {
	var saved domain.Measurement
	res, err := s.run(ctx, "record_measurement", domain.EntityMeasurement, func(tx domain.Transaction) (string, error) {
		point, ok := tx.FindPoint(pointID)
		if !ok {
			return "", domain.NewNotFoundError(domain.EntityPoint, pointID)
		}
		m, err := domain.ParseMeasurement(point.ID, point.Type, raw, notes)
		if err != nil {
			return "", err
		}
		if existing, ok := tx.FindMeasurementByPoint(point.ID); ok {
			saved, err = tx.UpdateMeasurement(existing.ID, func(cur *domain.Measurement) error {
				*cur = m
				return nil
			})
			return existing.ID, err
		}
		saved, err = tx.CreateMeasurement(m)
		return saved.ID, err
	})
	return saved, res, err
}

// DeleteMeasurement removes a measurement; its point becomes unmeasured.
func (s *Service) DeleteMeasurement(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_measurement", domain.EntityMeasurement, func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteMeasurement(id)
	})
}

// SaveVisualInspection validates raw input and stores it as the point's
// visual inspection, replacing an earlier one.
func (s *Service) SaveVisualInspection(ctx context.Context, in domain.VisualInspectionInput) (domain.VisualInspection, domain.Result, error) {
	var saved domain.VisualInspection
	res, err := s.run(ctx, "save_visual_inspection", domain.EntityVisualInspection, func(tx domain.Transaction) (string, error) {
		v, err := domain.NewVisualInspection(in)
		if err != nil {
			return "", err
		}
		if existing, ok := tx.FindVisualInspectionByPoint(v.PointID); ok {
			saved, err = tx.UpdateVisualInspection(existing.ID, func(cur *domain.VisualInspection) error {
				*cur = v
				return nil
			})
			return existing.ID, err
		}
		saved, err = tx.CreateVisualInspection(v)
		return saved.ID, err
	})
	return saved, res, err
}

// DeleteVisualInspection removes a visual inspection.
func (s *Service) DeleteVisualInspection(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_visual_inspection", domain.EntityVisualInspection, func(tx domain.Transaction) (string, error) {
		return id, tx.DeleteVisualInspection(id)
	})
}

// View runs fn against a consistent snapshot.
func (s *Service) View(ctx context.Context, fn func(domain.TransactionView) error) error {
	return s.read(ctx, "view", fn)
}

// GetClient loads one client.
func (s *Service) GetClient(ctx context.Context, id string) (domain.Client, error) {
	var out domain.Client
	err := s.read(ctx, "get_client", func(v domain.TransactionView) error {
		c, ok := v.FindClient(id)
		if !ok {
			return domain.NewNotFoundError(domain.EntityClient, id)
		}
		out = c
		return nil
	})
	return out, err
}

// ListClients returns all clients ordered by name.
func (s *Service) ListClients(ctx context.Context) ([]domain.Client, error) {
	var out []domain.Client
	err := s.read(ctx, "list_clients", func(v domain.TransactionView) error {
		out = v.ListClients()
		return nil
	})
	return out, err
}

// GetOrder loads one order.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var out domain.Order
	err := s.read(ctx, "get_order", func(v domain.TransactionView) error {
		o, ok := v.FindOrder(id)
		if !ok {
			return domain.NewNotFoundError(domain.EntityOrder, id)
		}
		out = o
		return nil
	})
	return out, err
}

// ListOrders returns the orders of clientID, or every order when clientID is
// empty, in creation order.
func (s *Service) ListOrders(ctx context.Context, clientID string) ([]domain.Order, error) {
	var out []domain.Order
	err := s.read(ctx, "list_orders", func(v domain.TransactionView) error {
		if clientID == "" {
			out = v.ListOrders()
			return nil
		}
		out = v.ListOrdersByClient(clientID)
		return nil
	})
	return out, err
}

// ListRooms returns the rooms of an order in creation order.
func (s *Service) ListRooms(ctx context.Context, orderID string) ([]domain.Room, error) {
	var out []domain.Room
	err := s.read(ctx, "list_rooms", func(v domain.TransactionView) error {
		out = v.ListRoomsByOrder(orderID)
		return nil
	})
	return out, err
}

// GetPoint loads one point.
func (s *Service) GetPoint(ctx context.Context, id string) (domain.Point, error) {
	var out domain.Point
	err := s.read(ctx, "get_point", func(v domain.TransactionView) error {
		p, ok := v.FindPoint(id)
		if !ok {
			return domain.NewNotFoundError(domain.EntityPoint, id)
		}
		out = p
		return nil
	})
	return out, err
}

// ListPoints returns the points of an order in creation order.
func (s *Service) ListPoints(ctx context.Context, orderID string) ([]domain.Point, error) {
	var out []domain.Point
	err := s.read(ctx, "list_points", func(v domain.TransactionView) error {
		out = v.ListPointsByOrder(orderID)
		return nil
	})
	return out, err
}

// GetMeasurement loads the measurement of a point.
func (s *Service) GetMeasurement(ctx context.Context, pointID string) (domain.Measurement, error) {
	var out domain.Measurement
	err := s.read(ctx, "get_measurement", func(v domain.TransactionView) error {
		m, ok := v.FindMeasurementByPoint(pointID)
		if !ok {
			return domain.NewNotFoundError(domain.EntityMeasurement, pointID)
		}
		out = m
		return nil
	})
	return out, err
}

// GetVisualInspection loads the visual inspection of a point.
func (s *Service) GetVisualInspection(ctx context.Context, pointID string) (domain.VisualInspection, error) {
	var out domain.VisualInspection
	err := s.read(ctx, "get_visual_inspection", func(v domain.TransactionView) error {
		vi, ok := v.FindVisualInspectionByPoint(pointID)
		if !ok {
			return domain.NewNotFoundError(domain.EntityVisualInspection, pointID)
		}
		out = vi
		return nil
	})
	return out, err
}

// AssembleProtocol builds the protocol document of an order.
func (s *Service) AssembleProtocol(ctx context.Context, orderID string) (protocol.Document, error) {
	var doc protocol.Document
	err := s.read(ctx, "assemble_protocol", func(v domain.TransactionView) error {
		var err error
		doc, err = protocol.Assemble(ctx, viewOnce{v}, orderID)
		return err
	})
	return doc, err
}

// ArchiveProtocol assembles the protocol of an order and stores it as the
// next archived revision.
func (s *Service) ArchiveProtocol(ctx context.Context, orderID string) (protocol.Archived, error) {
	start := s.clock.Now()
	archived, err := s.archiveProtocol(ctx, orderID)
	s.finish(ctx, "archive_protocol", domain.EntityOrder, orderID, start, err)
	return archived, err
}

func (s *Service) archiveProtocol(ctx context.Context, orderID string) (protocol.Archived, error) {
	if s.archive == nil {
		return protocol.Archived{}, s.classify("archive_protocol", errNoArchive)
	}
	doc, err := s.AssembleProtocol(ctx, orderID)
	if err != nil {
		return protocol.Archived{}, err
	}
	archived, err := protocol.Archive(ctx, s.archive, doc)
	if err != nil {
		return protocol.Archived{}, s.classify("archive_protocol", err)
	}
	s.logger.Info("protocol archived", zap.String("order_id", orderID), zap.String("key", archived.Key))
	return archived, nil
}

// ListArchivedProtocols returns the archived revisions of an order. A service
// without an archive reports a storage error, as ArchiveProtocol does.
func (s *Service) ListArchivedProtocols(ctx context.Context, orderID string) ([]protocol.Archived, error) {
	if s.archive == nil {
		return nil, s.classify("list_archived_protocols", errNoArchive)
	}
	out, err := protocol.ListArchived(ctx, s.archive, orderID)
	if err != nil {
		return nil, s.classify("list_archived_protocols", err)
	}
	return out, nil
}

// viewOnce adapts an already open view to protocol.Viewer so assembly shares
// the caller's snapshot.
type viewOnce struct{ view domain.TransactionView }

func (v viewOnce) View(_ context.Context, fn func(domain.TransactionView) error) error {
	return fn(v.view)
}
