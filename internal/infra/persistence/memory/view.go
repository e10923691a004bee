package memory

import (
	"sort"
	"time"

	"inspectcore/pkg/domain"
)

// transactionView exposes read-only access over a state; every record it
// returns is a copy.
type transactionView struct {
	state *memoryState
}

func byCreation[T any](items []T, base func(T) domain.Base) {
	sort.Slice(items, func(i, j int) bool {
		a, b := base(items[i]), base(items[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (v transactionView) FindClient(id string) (domain.Client, bool) {
	c, ok := v.state.clients[id]
	return c, ok
}

func (v transactionView) ListClients() []domain.Client {
	out := make([]domain.Client, 0, len(v.state.clients))
	for _, c := range v.state.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v transactionView) FindOrder(id string) (domain.Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return o.Clone(), true
}

func (v transactionView) ListOrders() []domain.Order {
	return v.orders(func(domain.Order) bool { return true })
}

func (v transactionView) ListOrdersByClient(clientID string) []domain.Order {
	return v.orders(func(o domain.Order) bool { return o.ClientID == clientID })
}

func (v transactionView) orders(keep func(domain.Order) bool) []domain.Order {
	out := make([]domain.Order, 0)
	for _, o := range v.state.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	byCreation(out, func(o domain.Order) domain.Base { return o.Base })
	return out
}

func (v transactionView) FindRoom(id string) (domain.Room, bool) {
	r, ok := v.state.rooms[id]
	return r, ok
}

func (v transactionView) ListRoomsByOrder(orderID string) []domain.Room {
	out := make([]domain.Room, 0)
	for _, r := range v.state.rooms {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	byCreation(out, func(r domain.Room) domain.Base { return r.Base })
	return out
}

func (v transactionView) FindPoint(id string) (domain.Point, bool) {
	p, ok := v.state.points[id]
	if !ok {
		return domain.Point{}, false
	}
	return p.Clone(), true
}

func (v transactionView) ListPointsByOrder(orderID string) []domain.Point {
	return v.pointsWhere(func(p domain.Point) bool { return p.OrderID == orderID })
}

func (v transactionView) ListPointsByRoom(roomID string) []domain.Point {
	return v.pointsWhere(func(p domain.Point) bool { return p.RoomID != nil && *p.RoomID == roomID })
}

func (v transactionView) pointsWhere(keep func(domain.Point) bool) []domain.Point {
	out := make([]domain.Point, 0)
	for _, p := range v.state.points {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	byCreation(out, func(p domain.Point) domain.Base { return p.Base })
	return out
}

func (v transactionView) FindMeasurement(id string) (domain.Measurement, bool) {
	m, ok := v.state.measurements[id]
	if !ok {
		return domain.Measurement{}, false
	}
	return m.Clone(), true
}

func (v transactionView) FindMeasurementByPoint(pointID string) (domain.Measurement, bool) {
	for _, m := range v.state.measurements {
		if m.PointID == pointID {
			return m.Clone(), true
		}
	}
	return domain.Measurement{}, false
}

func (v transactionView) FindVisualInspection(id string) (domain.VisualInspection, bool) {
	vi, ok := v.state.visuals[id]
	return vi, ok
}

func (v transactionView) FindVisualInspectionByPoint(pointID string) (domain.VisualInspection, bool) {
	for _, vi := range v.state.visuals {
		if vi.PointID == pointID {
			return vi, true
		}
	}
	return domain.VisualInspection{}, false
}

// stamp applies creation timestamps and an identifier when missing.
func stamp(b *domain.Base, now time.Time, newID func() string) {
	if b.ID == "" {
		b.ID = newID()
	}
	b.CreatedAt = now
	b.UpdatedAt = now
}
