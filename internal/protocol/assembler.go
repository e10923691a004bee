package protocol

import (
	"context"
	"sort"

	"inspectcore/pkg/domain"
)

// Viewer is the read side of a persistent store.
type Viewer interface {
	View(ctx context.Context, fn func(domain.TransactionView) error) error
}

// Assemble builds the protocol of orderID from a single consistent view.
// It fails with a not-found error when the order does not exist.
func Assemble(ctx context.Context, store Viewer, orderID string) (Document, error) {
	var doc Document
	err := store.View(ctx, func(view domain.TransactionView) error {
		order, ok := view.FindOrder(orderID)
		if !ok {
			return domain.NewNotFoundError(domain.EntityOrder, orderID)
		}
		client, ok := view.FindClient(order.ClientID)
		if !ok {
			return domain.NewNotFoundError(domain.EntityClient, order.ClientID)
		}
		doc = build(view, order, client)
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

func build(view domain.TransactionView, order domain.Order, client domain.Client) Document {
	doc := Document{
		OrderID: order.ID,
		Client: ClientBlock{
			ID:            client.ID,
			Name:          client.Name,
			Address:       client.Address,
			ContactPerson: client.ContactPerson,
			Phone:         client.Phone,
			Email:         client.Email,
		},
		Object: ObjectBlock{
			Name:          order.ObjectName,
			Address:       order.ObjectAddress,
			ScheduledDate: order.ScheduledDate,
			Status:        order.Status,
			Inspector:     order.Inspector,
			Notes:         order.Notes,
		},
		Rooms:      make([]RoomSection, 0),
		Unassigned: make([]PointEntry, 0),
	}

	rooms := view.ListRoomsByOrder(order.ID)
	sort.SliceStable(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	index := make(map[string]int, len(rooms))
	for i, r := range rooms {
		index[r.ID] = i
		doc.Rooms = append(doc.Rooms, RoomSection{ID: r.ID, Name: r.Name, Type: r.Type, Points: make([]PointEntry, 0)})
	}

	points := view.ListPointsByOrder(order.ID)
	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Label != points[j].Label {
			return points[i].Label < points[j].Label
		}
		return points[i].ID < points[j].ID
	})
	var (
		failedVisual bool
		sum          = &doc.Summary
	)
	for _, p := range points {
		entry := pointEntry(view, p)
		if entry.Visual != nil && entry.Visual.Saved && !entry.Visual.Passed {
			failedVisual = true
		}
		sum.Total++
		switch p.Status {
		case domain.PointOK:
			sum.OK++
		case domain.PointNotOK:
			sum.NotOK++
		default:
			sum.Unmeasured++
		}
		if p.RoomID != nil {
			if i, ok := index[*p.RoomID]; ok {
				doc.Rooms[i].Points = append(doc.Rooms[i].Points, entry)
				continue
			}
		}
		doc.Unassigned = append(doc.Unassigned, entry)
	}
	sum.Passed = sum.Total > 0 && sum.OK == sum.Total && !failedVisual
	sum.Inspector = order.Inspector
	sum.SignatureDate = order.ScheduledDate
	return doc
}

func pointEntry(view domain.TransactionView, p domain.Point) PointEntry {
	entry := PointEntry{
		ID:      p.ID,
		Label:   p.Label,
		Type:    p.Type,
		Status:  p.Status,
		Notes:   p.Notes,
		Results: make([]domain.SubResult, 0),
	}
	if m, ok := view.FindMeasurementByPoint(p.ID); ok {
		entry.Results = append(entry.Results, m.Results()...)
		entry.MeasurementNotes = m.Notes
	}
	if v, ok := view.FindVisualInspectionByPoint(p.ID); ok {
		entry.Visual = &VisualEntry{
			Summary:         v.Summary,
			Defects:         v.Defects,
			Recommendations: v.Recommendations,
			Passed:          v.Passed,
			Saved:           v.Saved,
		}
	}
	return entry
}
