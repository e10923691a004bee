package domain

import (
	"fmt"
	"strings"
	"time"

	"inspectcore/pkg/validate"
)

// DateLayout is the wire layout of scheduled dates.
const DateLayout = "2006-01-02"

// ClientInput carries raw client form values.
type ClientInput struct {
	Name          string
	Address       string
	ContactPerson string
	Phone         string
	Email         string
	Notes         string
}

// NewClient validates in and returns an unsaved client.
func NewClient(in ClientInput) (Client, error) {
	c := Client{
		Name:          strings.TrimSpace(in.Name),
		Address:       strings.TrimSpace(in.Address),
		ContactPerson: strings.TrimSpace(in.ContactPerson),
		Phone:         strings.TrimSpace(in.Phone),
		Email:         strings.TrimSpace(in.Email),
		Notes:         in.Notes,
	}
	return c, c.Validate()
}

// Validate checks the client invariants.
func (c Client) Validate() error {
	if !validate.Required(c.Name) {
		return NewValidationError("name", "name is required")
	}
	if validate.Required(c.Email) && !validate.Email(c.Email) {
		return NewValidationError("email", "email address is invalid")
	}
	return nil
}

// OrderInput carries raw order form values. ScheduledDate uses DateLayout
// and may be blank; Status defaults to draft.
type OrderInput struct {
	ClientID      string
	ObjectName    string
	ObjectAddress string
	ScheduledDate string
	Status        string
	Inspector     string
	Notes         string
}

// NewOrder validates in and returns an unsaved order.
func NewOrder(in OrderInput) (Order, error) {
	o := Order{
		ClientID:      strings.TrimSpace(in.ClientID),
		ObjectName:    strings.TrimSpace(in.ObjectName),
		ObjectAddress: strings.TrimSpace(in.ObjectAddress),
		Status:        OrderStatus(strings.TrimSpace(in.Status)),
		Inspector:     strings.TrimSpace(in.Inspector),
		Notes:         in.Notes,
	}
	if o.Status == "" {
		o.Status = OrderDraft
	}
	if validate.Required(in.ScheduledDate) {
		d, err := time.Parse(DateLayout, strings.TrimSpace(in.ScheduledDate))
		if err != nil {
			return Order{}, NewValidationError("scheduled_date", "date must use YYYY-MM-DD")
		}
		o.ScheduledDate = &d
	}
	return o, o.Validate()
}

// Validate checks the order invariants.
func (o Order) Validate() error {
	if !validate.Required(o.ClientID) {
		return NewValidationError("client_id", "client is required")
	}
	if !validate.Required(o.ObjectName) {
		return NewValidationError("object_name", "object name is required")
	}
	if !validate.Enum(o.Status, OrderStatuses) {
		return NewValidationError("status", fmt.Sprintf("unknown order status %q", o.Status))
	}
	return nil
}

// RoomInput carries raw room form values.
type RoomInput struct {
	OrderID string
	Name    string
	Type    string
}

// NewRoom validates in and returns an unsaved room.
func NewRoom(in RoomInput) (Room, error) {
	r := Room{
		OrderID: strings.TrimSpace(in.OrderID),
		Name:    strings.TrimSpace(in.Name),
		Type:    strings.TrimSpace(in.Type),
	}
	return r, r.Validate()
}

// Validate checks the room invariants.
func (r Room) Validate() error {
	if !validate.Required(r.OrderID) {
		return NewValidationError("order_id", "order is required")
	}
	if !validate.Required(r.Name) {
		return NewValidationError("name", "room name is required")
	}
	return nil
}

// PointInput carries raw point form values. A blank RoomID leaves the point
// unassigned.
type PointInput struct {
	OrderID string
	RoomID  string
	Label   string
	Type    string
	Notes   string
}

// NewPoint validates in and returns an unsaved, unmeasured point.
func NewPoint(in PointInput) (Point, error) {
	p := Point{
		OrderID: strings.TrimSpace(in.OrderID),
		Label:   strings.TrimSpace(in.Label),
		Type:    PointType(strings.TrimSpace(in.Type)),
		Status:  PointUnmeasured,
		Notes:   in.Notes,
	}
	if room := strings.TrimSpace(in.RoomID); room != "" {
		p.RoomID = &room
	}
	return p, p.Validate()
}

// Validate checks the point invariants.
func (p Point) Validate() error {
	if !validate.Required(p.OrderID) {
		return NewValidationError("order_id", "order is required")
	}
	if p.RoomID != nil && !validate.Required(*p.RoomID) {
		return NewValidationError("room_id", "room reference must not be blank")
	}
	if !validate.Required(p.Label) {
		return NewValidationError("label", "label is required")
	}
	if !validate.Enum(p.Type, PointTypes) {
		return NewValidationError("type", fmt.Sprintf("unknown point type %q", p.Type))
	}
	if p.Status != "" && !validate.Enum(p.Status, PointStatuses) {
		return NewValidationError("status", fmt.Sprintf("unknown point status %q", p.Status))
	}
	return nil
}

// VisualInspectionInput carries raw visual inspection form values.
type VisualInspectionInput struct {
	PointID         string
	Summary         string
	Defects         string
	Recommendations string
	Passed          bool
	Saved           bool
}

// NewVisualInspection validates in and returns an unsaved visual inspection.
func NewVisualInspection(in VisualInspectionInput) (VisualInspection, error) {
	v := VisualInspection{
		PointID:         strings.TrimSpace(in.PointID),
		Summary:         strings.TrimSpace(in.Summary),
		Defects:         strings.TrimSpace(in.Defects),
		Recommendations: strings.TrimSpace(in.Recommendations),
		Passed:          in.Passed,
		Saved:           in.Saved,
	}
	return v, v.Validate()
}

// Validate checks the visual inspection invariants. A failed inspection must
// name its defects.
func (v VisualInspection) Validate() error {
	if !validate.Required(v.PointID) {
		return NewValidationError("point_id", "point is required")
	}
	if !v.Passed && v.Saved && !validate.Required(v.Defects) {
		return NewValidationError("defects", "defects are required when the inspection failed")
	}
	return nil
}
