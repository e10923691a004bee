// Package domain defines the inspection entities, their validated
// constructors, measurement evaluation, the error taxonomy, and the
// persistence contracts implemented by storage backends.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the inspection schema.
type EntityType string

// Record kinds persisted by the store, one table each.
const (
	EntityClient           EntityType = "client"
	EntityOrder            EntityType = "order"
	EntityRoom             EntityType = "room"
	EntityPoint            EntityType = "point"
	EntityMeasurement      EntityType = "measurement"
	EntityVisualInspection EntityType = "visual_inspection"
)

// OrderStatus tracks the progress of an inspection order. Transitions are
// not ordered at the storage level.
type OrderStatus string

// Order statuses.
const (
	OrderDraft      OrderStatus = "draft"
	OrderInProgress OrderStatus = "in_progress"
	OrderDone       OrderStatus = "done"
)

// OrderStatuses lists every accepted order status.
var OrderStatuses = []OrderStatus{OrderDraft, OrderInProgress, OrderDone}

// PointType classifies what is measured at a point.
type PointType string

// Point types.
const (
	PointSocket1P PointType = "socket_1p"
	PointSocket3P PointType = "socket_3p"
	PointLighting PointType = "lighting"
	PointRCD      PointType = "rcd"
	PointEarthing PointType = "earthing"
	PointLPS      PointType = "lps"
	PointOther    PointType = "other"
)

// PointTypes lists every accepted point type.
var PointTypes = []PointType{PointSocket1P, PointSocket3P, PointLighting, PointRCD, PointEarthing, PointLPS, PointOther}

// PointStatus is derived from a point's measurement.
type PointStatus string

// Point statuses.
const (
	PointUnmeasured PointStatus = "unmeasured"
	PointOK         PointStatus = "ok"
	PointNotOK      PointStatus = "not_ok"
)

// PointStatuses lists every point status.
var PointStatuses = []PointStatus{PointUnmeasured, PointOK, PointNotOK}

// RCDType is the residual-current device class.
type RCDType string

// RCD classes.
const (
	RCDTypeAC RCDType = "AC"
	RCDTypeA  RCDType = "A"
	RCDTypeF  RCDType = "F"
	RCDTypeB  RCDType = "B"
)

// RCDTypes lists every accepted RCD class.
var RCDTypes = []RCDType{RCDTypeAC, RCDTypeA, RCDTypeF, RCDTypeB}

// RoomTypePresets are offered as quick-add values; room types stay free-form.
var RoomTypePresets = []string{"Kitchen", "Bathroom", "Living room", "Bedroom", "Hallway", "Basement", "Office", "Technical room"}

// Base contains common fields for all records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is the customer an inspection is carried out for.
type Client struct {
	Base
	Name          string `json:"name"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Notes         string `json:"notes"`
}

// Order is a single inspection job on one object for one client.
type Order struct {
	Base
	ClientID      string      `json:"client_id"`
	ObjectName    string      `json:"object_name"`
	ObjectAddress string      `json:"object_address"`
	ScheduledDate *time.Time  `json:"scheduled_date,omitempty"`
	Status        OrderStatus `json:"status"`
	Inspector     string      `json:"inspector"`
	Notes         string      `json:"notes"`
}

// Room groups points inside an order.
type Room struct {
	Base
	OrderID string `json:"order_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
}

// Point is a single measurement location. RoomID is nil for unassigned points.
type Point struct {
	Base
	OrderID string      `json:"order_id"`
	RoomID  *string     `json:"room_id,omitempty"`
	Label   string      `json:"label"`
	Type    PointType   `json:"type"`
	Status  PointStatus `json:"status"`
	Notes   string      `json:"notes"`
}

// Measurement stores the readings taken at a point. Nil readings were not
// recorded; which readings are required depends on the point type.
type Measurement struct {
	Base
	PointID                  string   `json:"point_id"`
	LoopImpedanceOhm         *float64 `json:"loop_impedance_ohm,omitempty"`
	InsulationLNMOhm         *float64 `json:"insulation_ln_mohm,omitempty"`
	InsulationLPEMOhm        *float64 `json:"insulation_lpe_mohm,omitempty"`
	InsulationNPEMOhm        *float64 `json:"insulation_npe_mohm,omitempty"`
	PEContinuityOhm          *float64 `json:"pe_continuity_ohm,omitempty"`
	RCDType                  *RCDType `json:"rcd_type,omitempty"`
	RCDRatedCurrentMA        *float64 `json:"rcd_rated_current_ma,omitempty"`
	RCDTripTimeMS            *float64 `json:"rcd_trip_time_ms,omitempty"`
	EarthingResistanceOhm    *float64 `json:"earthing_resistance_ohm,omitempty"`
	PolarityOK               *bool    `json:"polarity_ok,omitempty"`
	PhaseSequenceOK          *bool    `json:"phase_sequence_ok,omitempty"`
	BreakerOK                *bool    `json:"breaker_ok,omitempty"`
	LPSEarthingResistanceOhm *float64 `json:"lps_earthing_resistance_ohm,omitempty"`
	LPSContinuityOhm         *float64 `json:"lps_continuity_ohm,omitempty"`
	LPSVisualOK              *bool    `json:"lps_visual_ok,omitempty"`
	Notes                    string   `json:"notes"`
}

// VisualInspection records the visual check of a point.
type VisualInspection struct {
	Base
	PointID         string `json:"point_id"`
	Summary         string `json:"summary"`
	Defects         string `json:"defects"`
	Recommendations string `json:"recommendations"`
	Passed          bool   `json:"passed"`
	Saved           bool   `json:"saved"`
}

// Change describes a mutation applied to a record during a transaction.
// Before is nil for creates and After is nil for deletes.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
