package memory

import (
	"fmt"
	"time"

	"inspectcore/pkg/domain"
)

// transaction represents a mutation set applied to a private state copy.
type transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) view() transactionView { return transactionView{state: &tx.state} }

func (tx *transaction) record(entity domain.EntityType, action domain.Action, before, after any) {
	tx.changes = append(tx.changes, domain.Change{Entity: entity, Action: action, Before: before, After: after})
}

// Reads go through a view over tx.state so staged changes are visible.

func (tx *transaction) FindClient(id string) (domain.Client, bool) { return tx.view().FindClient(id) }
func (tx *transaction) ListClients() []domain.Client                { return tx.view().ListClients() }
func (tx *transaction) FindOrder(id string) (domain.Order, bool)    { return tx.view().FindOrder(id) }
func (tx *transaction) ListOrders() []domain.Order                  { return tx.view().ListOrders() }
func (tx *transaction) ListOrdersByClient(clientID string) []domain.Order {
	return tx.view().ListOrdersByClient(clientID)
}
func (tx *transaction) FindRoom(id string) (domain.Room, bool) { return tx.view().FindRoom(id) }
func (tx *transaction) ListRoomsByOrder(orderID string) []domain.Room {
	return tx.view().ListRoomsByOrder(orderID)
}
func (tx *transaction) FindPoint(id string) (domain.Point, bool) { return tx.view().FindPoint(id) }
func (tx *transaction) ListPointsByOrder(orderID string) []domain.Point {
	return tx.view().ListPointsByOrder(orderID)
}
func (tx *transaction) ListPointsByRoom(roomID string) []domain.Point {
	return tx.view().ListPointsByRoom(roomID)
}
func (tx *transaction) FindMeasurement(id string) (domain.Measurement, bool) {
	return tx.view().FindMeasurement(id)
}
func (tx *transaction) FindMeasurementByPoint(pointID string) (domain.Measurement, bool) {
	return tx.view().FindMeasurementByPoint(pointID)
}
func (tx *transaction) FindVisualInspection(id string) (domain.VisualInspection, bool) {
	return tx.view().FindVisualInspection(id)
}
func (tx *transaction) FindVisualInspectionByPoint(pointID string) (domain.VisualInspection, bool) {
	return tx.view().FindVisualInspectionByPoint(pointID)
}

func alreadyExists(entity domain.EntityType, id string) error {
	return domain.NewValidationError("id", fmt.Sprintf("%s %q already exists", entity, id))
}

func immutable(field string) error {
	return domain.NewValidationError(field, "cannot be changed after creation")
}

// Clients ---------------------------------------------------------------------

// CreateClient stores a new client.
func (tx *transaction) CreateClient(c domain.Client) (domain.Client, error) {
	if err := c.Validate(); err != nil {
		return domain.Client{}, err
	}
	stamp(&c.Base, tx.now, tx.store.newID)
	if _, exists := tx.state.clients[c.ID]; exists {
		return domain.Client{}, alreadyExists(domain.EntityClient, c.ID)
	}
	tx.state.clients[c.ID] = c
	tx.record(domain.EntityClient, domain.ActionCreate, nil, c)
	return c, nil
}

// UpdateClient replaces a client with the mutated copy.
func (tx *transaction) UpdateClient(id string, mutator func(*domain.Client) error) (domain.Client, error) {
	current, ok := tx.state.clients[id]
	if !ok {
		return domain.Client{}, domain.NewNotFoundError(domain.EntityClient, id)
	}
	next := current
	if err := mutator(&next); err != nil {
		return domain.Client{}, err
	}
	next.Base = current.Base
	if err := next.Validate(); err != nil {
		return domain.Client{}, err
	}
	next.UpdatedAt = tx.now
	tx.state.clients[id] = next
	tx.record(domain.EntityClient, domain.ActionUpdate, current, next)
	return next, nil
}

// DeleteClient removes a client. Clients that still own orders are kept.
func (tx *transaction) DeleteClient(id string) error {
	current, ok := tx.state.clients[id]
	if !ok {
		return domain.NewNotFoundError(domain.EntityClient, id)
	}
	if orders := tx.view().ListOrdersByClient(id); len(orders) > 0 {
		return domain.NewCannotDeleteError(domain.EntityClient, id,
			fmt.Sprintf("Client %q still has %d order(s); delete them first.", current.Name, len(orders)))
	}
	delete(tx.state.clients, id)
	tx.record(domain.EntityClient, domain.ActionDelete, current, nil)
	return nil
}

// Orders ----------------------------------------------------------------------

func (tx *transaction) checkOrder(o domain.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if _, ok := tx.state.clients[o.ClientID]; !ok {
		return domain.NewNotFoundError(domain.EntityClient, o.ClientID)
	}
	return nil
}

// CreateOrder stores a new order for an existing client.
func (tx *transaction) CreateOrder(o domain.Order) (domain.Order, error) {
	if o.Status == "" {
		o.Status = domain.OrderDraft
	}
	if err := tx.checkOrder(o); err != nil {
		return domain.Order{}, err
	}
	o = o.Clone()
	stamp(&o.Base, tx.now, tx.store.newID)
	if _, exists := tx.state.orders[o.ID]; exists {
		return domain.Order{}, alreadyExists(domain.EntityOrder, o.ID)
	}
	tx.state.orders[o.ID] = o
	tx.record(domain.EntityOrder, domain.ActionCreate, nil, o.Clone())
	return o.Clone(), nil
}

// UpdateOrder replaces an order with the mutated copy. The status may be set
// to any accepted value regardless of its current value.
func (tx *transaction) UpdateOrder(id string, mutator func(*domain.Order) error) (domain.Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.Order{}, domain.NewNotFoundError(domain.EntityOrder, id)
	}
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return domain.Order{}, err
	}
	next.Base = current.Base
	if err := tx.checkOrder(next); err != nil {
		return domain.Order{}, err
	}
	next = next.Clone()
	next.UpdatedAt = tx.now
	tx.state.orders[id] = next
	tx.record(domain.EntityOrder, domain.ActionUpdate, current.Clone(), next.Clone())
	return next.Clone(), nil
}

// DeleteOrder removes an order together with its rooms, points, measurements
// and visual inspections. Dependents are staged first so the change log can
// be replayed against strict foreign keys.
func (tx *transaction) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return domain.NewNotFoundError(domain.EntityOrder, id)
	}
	for _, p := range tx.view().ListPointsByOrder(id) {
		tx.deletePointCascade(p)
	}
	for _, r := range tx.view().ListRoomsByOrder(id) {
		delete(tx.state.rooms, r.ID)
		tx.record(domain.EntityRoom, domain.ActionDelete, r, nil)
	}
	delete(tx.state.orders, id)
	tx.record(domain.EntityOrder, domain.ActionDelete, current.Clone(), nil)
	return nil
}

// Rooms -----------------------------------------------------------------------

// CreateRoom stores a new room for an existing order.
func (tx *transaction) CreateRoom(r domain.Room) (domain.Room, error) {
	if err := r.Validate(); err != nil {
		return domain.Room{}, err
	}
	if _, ok := tx.state.orders[r.OrderID]; !ok {
		return domain.Room{}, domain.NewNotFoundError(domain.EntityOrder, r.OrderID)
	}
	stamp(&r.Base, tx.now, tx.store.newID)
	if _, exists := tx.state.rooms[r.ID]; exists {
		return domain.Room{}, alreadyExists(domain.EntityRoom, r.ID)
	}
	tx.state.rooms[r.ID] = r
	tx.record(domain.EntityRoom, domain.ActionCreate, nil, r)
	return r, nil
}

// UpdateRoom replaces a room with the mutated copy. Rooms stay in their order.
func (tx *transaction) UpdateRoom(id string, mutator func(*domain.Room) error) (domain.Room, error) {
	current, ok := tx.state.rooms[id]
	if !ok {
		return domain.Room{}, domain.NewNotFoundError(domain.EntityRoom, id)
	}
	next := current
	if err := mutator(&next); err != nil {
		return domain.Room{}, err
	}
	next.Base = current.Base
	if next.OrderID != current.OrderID {
		return domain.Room{}, immutable("order_id")
	}
	if err := next.Validate(); err != nil {
		return domain.Room{}, err
	}
	next.UpdatedAt = tx.now
	tx.state.rooms[id] = next
	tx.record(domain.EntityRoom, domain.ActionUpdate, current, next)
	return next, nil
}

// DeleteRoom removes a room and detaches its points, which stay in the order.
func (tx *transaction) DeleteRoom(id string) error {
	current, ok := tx.state.rooms[id]
	if !ok {
		return domain.NewNotFoundError(domain.EntityRoom, id)
	}
	for _, p := range tx.view().ListPointsByRoom(id) {
		before := p.Clone()
		p.RoomID = nil
		p.UpdatedAt = tx.now
		tx.state.points[p.ID] = p
		tx.record(domain.EntityPoint, domain.ActionUpdate, before, p.Clone())
	}
	delete(tx.state.rooms, id)
	tx.record(domain.EntityRoom, domain.ActionDelete, current, nil)
	return nil
}

// Points ----------------------------------------------------------------------

func (tx *transaction) checkPoint(p domain.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := tx.state.orders[p.OrderID]; !ok {
		return domain.NewNotFoundError(domain.EntityOrder, p.OrderID)
	}
	if p.RoomID == nil {
		return nil
	}
	room, ok := tx.state.rooms[*p.RoomID]
	if !ok {
		return domain.NewNotFoundError(domain.EntityRoom, *p.RoomID)
	}
	if room.OrderID != p.OrderID {
		return domain.NewValidationError("room_id", fmt.Sprintf("room %q belongs to another order", room.Name))
	}
	return nil
}

func (tx *transaction) measurementFor(pointID string) *domain.Measurement {
	for _, m := range tx.state.measurements {
		if m.PointID == pointID {
			return &m
		}
	}
	return nil
}

// CreatePoint stores a new point. Its status starts as unmeasured.
func (tx *transaction) CreatePoint(p domain.Point) (domain.Point, error) {
	if err := tx.checkPoint(p); err != nil {
		return domain.Point{}, err
	}
	p = p.Clone()
	stamp(&p.Base, tx.now, tx.store.newID)
	if _, exists := tx.state.points[p.ID]; exists {
		return domain.Point{}, alreadyExists(domain.EntityPoint, p.ID)
	}
	p.Status = domain.DerivePointStatus(p.Type, tx.measurementFor(p.ID))
	tx.state.points[p.ID] = p
	tx.record(domain.EntityPoint, domain.ActionCreate, nil, p.Clone())
	return p.Clone(), nil
}

// UpdatePoint replaces a point with the mutated copy. The status is always
// recomputed from the stored measurement.
func (tx *transaction) UpdatePoint(id string, mutator func(*domain.Point) error) (domain.Point, error) {
	current, ok := tx.state.points[id]
	if !ok {
		return domain.Point{}, domain.NewNotFoundError(domain.EntityPoint, id)
	}
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return domain.Point{}, err
	}
	next.Base = current.Base
	if next.OrderID != current.OrderID {
		return domain.Point{}, immutable("order_id")
	}
	next.Status = domain.DerivePointStatus(next.Type, tx.measurementFor(id))
	if err := tx.checkPoint(next); err != nil {
		return domain.Point{}, err
	}
	next = next.Clone()
	next.UpdatedAt = tx.now
	tx.state.points[id] = next
	tx.record(domain.EntityPoint, domain.ActionUpdate, current.Clone(), next.Clone())
	return next.Clone(), nil
}

// DeletePoint removes a point with its measurement and visual inspection.
func (tx *transaction) DeletePoint(id string) error {
	current, ok := tx.state.points[id]
	if !ok {
		return domain.NewNotFoundError(domain.EntityPoint, id)
	}
	tx.deletePointCascade(current)
	return nil
}

func (tx *transaction) deletePointCascade(p domain.Point) {
	for id, vi := range tx.state.visuals {
		if vi.PointID == p.ID {
			delete(tx.state.visuals, id)
			tx.record(domain.EntityVisualInspection, domain.ActionDelete, vi, nil)
		}
	}
	for id, m := range tx.state.measurements {
		if m.PointID == p.ID {
			delete(tx.state.measurements, id)
			tx.record(domain.EntityMeasurement, domain.ActionDelete, m.Clone(), nil)
		}
	}
	delete(tx.state.points, p.ID)
	tx.record(domain.EntityPoint, domain.ActionDelete, p.Clone(), nil)
}

// refreshPointStatus re-derives the status of a point after its measurement
// changed and stages the update when it differs.
func (tx *transaction) refreshPointStatus(pointID string) {
	p, ok := tx.state.points[pointID]
	if !ok {
		return
	}
	status := domain.DerivePointStatus(p.Type, tx.measurementFor(pointID))
	if status == p.Status {
		return
	}
	before := p.Clone()
	p.Status = status
	p.UpdatedAt = tx.now
	tx.state.points[pointID] = p
	tx.record(domain.EntityPoint, domain.ActionUpdate, before, p.Clone())
}

// Measurements ----------------------------------------------------------------

func (tx *transaction) pointFor(pointID string) (domain.Point, error) {
	p, ok := tx.state.points[pointID]
	if !ok {
		return domain.Point{}, domain.NewNotFoundError(domain.EntityPoint, pointID)
	}
	return p, nil
}

// CreateMeasurement stores the single measurement of a point, validated
// against the point's type, and updates the point status.
func (tx *transaction) CreateMeasurement(m domain.Measurement) (domain.Measurement, error) {
	if m.PointID == "" {
		return domain.Measurement{}, domain.NewValidationError("point_id", "point is required")
	}
	point, err := tx.pointFor(m.PointID)
	if err != nil {
		return domain.Measurement{}, err
	}
	if err := m.Validate(point.Type); err != nil {
		return domain.Measurement{}, err
	}
	if tx.measurementFor(m.PointID) != nil {
		return domain.Measurement{}, domain.NewValidationError("point_id", fmt.Sprintf("point %q already has a measurement", point.Label))
	}
	m = m.Clone()
	stamp(&m.Base, tx.now, tx.store.newID)
	if _, exists := tx.state.measurements[m.ID]; exists {
		return domain.Measurement{}, alreadyExists(domain.EntityMeasurement, m.ID)
	}
	tx.state.measurements[m.ID] = m
	tx.record(domain.EntityMeasurement, domain.ActionCreate, nil, m.Clone())
	tx.refreshPointStatus(m.PointID)
	return m.Clone(), nil
}

// UpdateMeasurement replaces a measurement with the mutated copy.
func (tx *transaction) UpdateMeasurement(id string, mutator func(*domain.Measurement) error) (domain.Measurement, error) {
	current, ok := tx.state.measurements[id]
	if !ok {
		return domain.Measurement{}, domain.NewNotFoundError(domain.EntityMeasurement, id)
	}
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return domain.Measurement{}, err
	}
	next.Base = current.Base
	if next.PointID != current.PointID {
		return domain.Measurement{}, immutable("point_id")
	}
	point, err := tx.pointFor(next.PointID)
	if err != nil {
		return domain.Measurement{}, err
	}
	if err := next.Validate(point.Type); err != nil {
		return domain.Measurement{}, err
	}
	next = next.Clone()
	next.UpdatedAt = tx.now
	tx.state.measurements[id] = next
	tx.record(domain.EntityMeasurement, domain.ActionUpdate, current.Clone(), next.Clone())
	tx.refreshPointStatus(next.PointID)
	return next.Clone(), nil
}

// DeleteMeasurement removes a measurement; its point becomes unmeasured.
func (tx *transaction) DeleteMeasurement(id string) error {
	current, ok := tx.state.measurements[id]
	if !ok {
		return domain.NewNotFoundError(domain.EntityMeasurement, id)
	}
	delete(tx.state.measurements, id)
	tx.record(domain.EntityMeasurement, domain.ActionDelete, current.Clone(), nil)
	tx.refreshPointStatus(current.PointID)
	return nil
}

// Visual inspections ----------------------------------------------------------

// CreateVisualInspection stores the single visual inspection of a point.
func (tx *transaction) CreateVisualInspection(v domain.VisualInspection) (domain.VisualInspection, error) {
	if err := v.Validate(); err != nil {
		return domain.VisualInspection{}, err
	}
	point, err := tx.pointFor(v.PointID)
	if err != nil {
		return domain.VisualInspection{}, err
	}
	if _, exists := tx.view().FindVisualInspectionByPoint(v.PointID); exists {
		return domain.VisualInspection{}, domain.NewValidationError("point_id", fmt.Sprintf("point %q already has a visual inspection", point.Label))
	}
	stamp(&v.Base, tx.now, tx.store.newID)
	if _, exists := tx.state.visuals[v.ID]; exists {
		return domain.VisualInspection{}, alreadyExists(domain.EntityVisualInspection, v.ID)
	}
	tx.state.visuals[v.ID] = v
	tx.record(domain.EntityVisualInspection, domain.ActionCreate, nil, v)
	return v, nil
}

// UpdateVisualInspection replaces a visual inspection with the mutated copy.
func (tx *transaction) UpdateVisualInspection(id string, mutator func(*domain.VisualInspection) error) (domain.VisualInspection, error) {
	current, ok := tx.state.visuals[id]
	if !ok {
		return domain.VisualInspection{}, domain.NewNotFoundError(domain.EntityVisualInspection, id)
	}
	next := current
	if err := mutator(&next); err != nil {
		return domain.VisualInspection{}, err
	}
	next.Base = current.Base
	if next.PointID != current.PointID {
		return domain.VisualInspection{}, immutable("point_id")
	}
	if err := next.Validate(); err != nil {
		return domain.VisualInspection{}, err
	}
	next.UpdatedAt = tx.now
	tx.state.visuals[id] = next
	tx.record(domain.EntityVisualInspection, domain.ActionUpdate, current, next)
	return next, nil
}

// DeleteVisualInspection removes a visual inspection.
func (tx *transaction) DeleteVisualInspection(id string) error {
	current, ok := tx.state.visuals[id]
	if !ok {
		return domain.NewNotFoundError(domain.EntityVisualInspection, id)
	}
	delete(tx.state.visuals, id)
	tx.record(domain.EntityVisualInspection, domain.ActionDelete, current, nil)
	return nil
}
