package domain

import "context"

// TransactionView provides read-only access to a consistent snapshot of the
// store. List methods return records in a stable order.
type TransactionView interface {
	FindClient(id string) (Client, bool)
	ListClients() []Client
	FindOrder(id string) (Order, bool)
	ListOrders() []Order
	ListOrdersByClient(clientID string) []Order
	FindRoom(id string) (Room, bool)
	ListRoomsByOrder(orderID string) []Room
	FindPoint(id string) (Point, bool)
	ListPointsByOrder(orderID string) []Point
	ListPointsByRoom(roomID string) []Point
	FindMeasurement(id string) (Measurement, bool)
	FindMeasurementByPoint(pointID string) (Measurement, bool)
	FindVisualInspection(id string) (VisualInspection, bool)
	FindVisualInspectionByPoint(pointID string) (VisualInspection, bool)
}

// Transaction exposes the write operations a persistence implementation must
// support within an atomic scope. Updates apply mutator to a copy of the
// current record and re-validate the whole record before staging it.
type Transaction interface {
	TransactionView
	CreateClient(Client) (Client, error)
	UpdateClient(id string, mutator func(*Client) error) (Client, error)
	DeleteClient(id string) error
	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	DeleteOrder(id string) error
	CreateRoom(Room) (Room, error)
	UpdateRoom(id string, mutator func(*Room) error) (Room, error)
	DeleteRoom(id string) error
	CreatePoint(Point) (Point, error)
	UpdatePoint(id string, mutator func(*Point) error) (Point, error)
	DeletePoint(id string) error
	CreateMeasurement(Measurement) (Measurement, error)
	UpdateMeasurement(id string, mutator func(*Measurement) error) (Measurement, error)
	DeleteMeasurement(id string) error
	CreateVisualInspection(VisualInspection) (VisualInspection, error)
	UpdateVisualInspection(id string, mutator func(*VisualInspection) error) (VisualInspection, error)
	DeleteVisualInspection(id string) error
}

// PersistentStore is the abstraction over durable backends used by higher
// layers. RunInTransaction serializes writers; View never observes a
// partially applied transaction.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Close() error
}
