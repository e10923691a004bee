// Package protocol assembles the inspection protocol of an order: the
// read-only document handed to renderers, and its write-once archive.
package protocol

import (
	"time"

	"inspectcore/pkg/domain"
)

// Document is the exportable protocol of one order.
type Document struct {
	OrderID    string        `json:"order_id"`
	Client     ClientBlock   `json:"client"`
	Object     ObjectBlock   `json:"object"`
	Rooms      []RoomSection `json:"rooms"`
	Unassigned []PointEntry  `json:"unassigned"`
	Summary    Summary       `json:"summary"`
}

// ClientBlock carries the client header.
type ClientBlock struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
}

// ObjectBlock describes the inspected object.
type ObjectBlock struct {
	Name          string             `json:"name"`
	Address       string             `json:"address"`
	ScheduledDate *time.Time         `json:"scheduled_date,omitempty"`
	Status        domain.OrderStatus `json:"status"`
	Inspector     string             `json:"inspector"`
	Notes         string             `json:"notes"`
}

// RoomSection lists the points of one room.
type RoomSection struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Points []PointEntry `json:"points"`
}

// PointEntry is one measurement point with its evaluated readings.
type PointEntry struct {
	ID               string             `json:"id"`
	Label            string             `json:"label"`
	Type             domain.PointType   `json:"type"`
	Status           domain.PointStatus `json:"status"`
	Notes            string             `json:"notes"`
	Results          []domain.SubResult `json:"results"`
	MeasurementNotes string             `json:"measurement_notes,omitempty"`
	Visual           *VisualEntry       `json:"visual,omitempty"`
}

// VisualEntry is the visual inspection of a point.
type VisualEntry struct {
	Summary         string `json:"summary"`
	Defects         string `json:"defects"`
	Recommendations string `json:"recommendations"`
	Passed          bool   `json:"passed"`
	Saved           bool   `json:"saved"`
}

// Summary is the closing block of the protocol. Passed requires at least one
// point, every point ok, and no saved visual inspection that failed.
type Summary struct {
	Total         int        `json:"total"`
	OK            int        `json:"ok"`
	NotOK         int        `json:"not_ok"`
	Unmeasured    int        `json:"unmeasured"`
	Passed        bool       `json:"passed"`
	Inspector     string     `json:"inspector"`
	SignatureDate *time.Time `json:"signature_date"`
}
