package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"inspectcore/internal/infra/persistence/memory"
	"inspectcore/pkg/domain"
)

// table maps one entity kind onto its relational row. columns[0] is always id.
type table struct {
	name    string
	entity  domain.EntityType
	columns []string
	values  func(record any) ([]any, error)
	scan    func(rows *sql.Rows, into *memory.Snapshot) error
}

var (
	tablesByEntity = map[domain.EntityType]table{}
	tablesByName   = map[string]table{}
)

func init() {
	for _, t := range []table{clientsTable, ordersTable, roomsTable, pointsTable, measurementsTable, visualInspectionsTable} {
		tablesByEntity[t.entity] = t
		tablesByName[t.name] = t
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

func parseBase(id, created, updated string) (domain.Base, error) {
	c, err := parseTime(created)
	if err != nil {
		return domain.Base{}, err
	}
	u, err := parseTime(updated)
	if err != nil {
		return domain.Base{}, err
	}
	return domain.Base{ID: id, CreatedAt: c, UpdatedAt: u}, nil
}

func nullFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullBool(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func boolPtr(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

func wrongType(want string, got any) error {
	return fmt.Errorf("expected %s record, got %T", want, got)
}

var clientsTable = table{
	name:    "clients",
	entity:  domain.EntityClient,
	columns: []string{"id", "name", "address", "contact_person", "phone", "email", "notes", "created_at", "updated_at"},
	values: func(record any) ([]any, error) {
		c, ok := record.(domain.Client)
		if !ok {
			return nil, wrongType("client", record)
		}
		return []any{c.ID, c.Name, c.Address, c.ContactPerson, c.Phone, c.Email, c.Notes, formatTime(c.CreatedAt), formatTime(c.UpdatedAt)}, nil
	},
	scan: func(rows *sql.Rows, into *memory.Snapshot) error {
		var c domain.Client
		var id, created, updated string
		if err := rows.Scan(&id, &c.Name, &c.Address, &c.ContactPerson, &c.Phone, &c.Email, &c.Notes, &created, &updated); err != nil {
			return err
		}
		base, err := parseBase(id, created, updated)
		if err != nil {
			return err
		}
		c.Base = base
		into.Clients[c.ID] = c
		return nil
	},
}

var ordersTable = table{
	name:    "orders",
	entity:  domain.EntityOrder,
	columns: []string{"id", "client_id", "object_name", "object_address", "scheduled_date", "status", "inspector", "notes", "created_at", "updated_at"},
	values: func(record any) ([]any, error) {
		o, ok := record.(domain.Order)
		if !ok {
			return nil, wrongType("order", record)
		}
		var scheduled any
		if o.ScheduledDate != nil {
			scheduled = o.ScheduledDate.Format(domain.DateLayout)
		}
		return []any{o.ID, o.ClientID, o.ObjectName, o.ObjectAddress, scheduled, string(o.Status), o.Inspector, o.Notes, formatTime(o.CreatedAt), formatTime(o.UpdatedAt)}, nil
	},
	scan: func(rows *sql.Rows, into *memory.Snapshot) error {
		var o domain.Order
		var id, status, created, updated string
		var scheduled sql.NullString
		if err := rows.Scan(&id, &o.ClientID, &o.ObjectName, &o.ObjectAddress, &scheduled, &status, &o.Inspector, &o.Notes, &created, &updated); err != nil {
			return err
		}
		base, err := parseBase(id, created, updated)
		if err != nil {
			return err
		}
		o.Base = base
		o.Status = domain.OrderStatus(status)
		if scheduled.Valid {
			d, err := time.Parse(domain.DateLayout, scheduled.String)
			if err != nil {
				return fmt.Errorf("parse scheduled_date %q: %w", scheduled.String, err)
			}
			o.ScheduledDate = &d
		}
		into.Orders[o.ID] = o
		return nil
	},
}

var roomsTable = table{
	name:    "rooms",
	entity:  domain.EntityRoom,
	columns: []string{"id", "order_id", "name", "room_type", "created_at", "updated_at"},
	values: func(record any) ([]any, error) {
		r, ok := record.(domain.Room)
		if !ok {
			return nil, wrongType("room", record)
		}
		return []any{r.ID, r.OrderID, r.Name, r.Type, formatTime(r.CreatedAt), formatTime(r.UpdatedAt)}, nil
	},
	scan: func(rows *sql.Rows, into *memory.Snapshot) error {
		var r domain.Room
		var id, created, updated string
		if err := rows.Scan(&id, &r.OrderID, &r.Name, &r.Type, &created, &updated); err != nil {
			return err
		}
		base, err := parseBase(id, created, updated)
		if err != nil {
			return err
		}
		r.Base = base
		into.Rooms[r.ID] = r
		return nil
	},
}

var pointsTable = table{
	name:    "points",
	entity:  domain.EntityPoint,
	columns: []string{"id", "order_id", "room_id", "label", "point_type", "status", "notes", "created_at", "updated_at"},
	values: func(record any) ([]any, error) {
		p, ok := record.(domain.Point)
		if !ok {
			return nil, wrongType("point", record)
		}
		var room any
		if p.RoomID != nil {
			room = *p.RoomID
		}
		return []any{p.ID, p.OrderID, room, p.Label, string(p.Type), string(p.Status), p.Notes, formatTime(p.CreatedAt), formatTime(p.UpdatedAt)}, nil
	},
	scan: func(rows *sql.Rows, into *memory.Snapshot) error {
		var p domain.Point
		var id, pointType, status, created, updated string
		var room sql.NullString
		if err := rows.Scan(&id, &p.OrderID, &room, &p.Label, &pointType, &status, &p.Notes, &created, &updated); err != nil {
			return err
		}
		base, err := parseBase(id, created, updated)
		if err != nil {
			return err
		}
		p.Base = base
		p.Type = domain.PointType(pointType)
		p.Status = domain.PointStatus(status)
		if room.Valid {
			r := room.String
			p.RoomID = &r
		}
		into.Points[p.ID] = p
		return nil
	},
}

var measurementsTable = table{
	name:   "measurements",
	entity: domain.EntityMeasurement,
	columns: []string{
		"id", "point_id",
		"loop_impedance_ohm", "insulation_ln_mohm", "insulation_lpe_mohm", "insulation_npe_mohm", "pe_continuity_ohm",
		"rcd_type", "rcd_rated_current_ma", "rcd_trip_time_ms", "earthing_resistance_ohm",
		"polarity_ok", "phase_sequence_ok", "breaker_ok",
		"lps_earthing_resistance_ohm", "lps_continuity_ohm", "lps_visual_ok",
		"notes", "created_at", "updated_at",
	},
	values: func(record any) ([]any, error) {
		m, ok := record.(domain.Measurement)
		if !ok {
			return nil, wrongType("measurement", record)
		}
		var rcd any
		if m.RCDType != nil {
			rcd = string(*m.RCDType)
		}
		return []any{
			m.ID, m.PointID,
			nullFloat(m.LoopImpedanceOhm), nullFloat(m.InsulationLNMOhm), nullFloat(m.InsulationLPEMOhm), nullFloat(m.InsulationNPEMOhm), nullFloat(m.PEContinuityOhm),
			rcd, nullFloat(m.RCDRatedCurrentMA), nullFloat(m.RCDTripTimeMS), nullFloat(m.EarthingResistanceOhm),
			nullBool(m.PolarityOK), nullBool(m.PhaseSequenceOK), nullBool(m.BreakerOK),
			nullFloat(m.LPSEarthingResistanceOhm), nullFloat(m.LPSContinuityOhm), nullBool(m.LPSVisualOK),
			m.Notes, formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
		}, nil
	},
	scan: func(rows *sql.Rows, into *memory.Snapshot) error {
		var m domain.Measurement
		var id, created, updated string
		var loop, insLN, insLPE, insNPE, pe, rcdCurrent, rcdTrip, earthing, lpsEarthing, lpsContinuity sql.NullFloat64
		var polarity, phase, breaker, lpsVisual sql.NullBool
		var rcd sql.NullString
		if err := rows.Scan(
			&id, &m.PointID,
			&loop, &insLN, &insLPE, &insNPE, &pe,
			&rcd, &rcdCurrent, &rcdTrip, &earthing,
			&polarity, &phase, &breaker,
			&lpsEarthing, &lpsContinuity, &lpsVisual,
			&m.Notes, &created, &updated,
		); err != nil {
			return err
		}
		base, err := parseBase(id, created, updated)
		if err != nil {
			return err
		}
		m.Base = base
		m.LoopImpedanceOhm = floatPtr(loop)
		m.InsulationLNMOhm = floatPtr(insLN)
		m.InsulationLPEMOhm = floatPtr(insLPE)
		m.InsulationNPEMOhm = floatPtr(insNPE)
		m.PEContinuityOhm = floatPtr(pe)
		if rcd.Valid {
			rt := domain.RCDType(rcd.String)
			m.RCDType = &rt
		}
		m.RCDRatedCurrentMA = floatPtr(rcdCurrent)
		m.RCDTripTimeMS = floatPtr(rcdTrip)
		m.EarthingResistanceOhm = floatPtr(earthing)
		m.PolarityOK = boolPtr(polarity)
		m.PhaseSequenceOK = boolPtr(phase)
		m.BreakerOK = boolPtr(breaker)
		m.LPSEarthingResistanceOhm = floatPtr(lpsEarthing)
		m.LPSContinuityOhm = floatPtr(lpsContinuity)
		m.LPSVisualOK = boolPtr(lpsVisual)
		into.Measurements[m.ID] = m
		return nil
	},
}

var visualInspectionsTable = table{
	name:    "visual_inspections",
	entity:  domain.EntityVisualInspection,
	columns: []string{"id", "point_id", "summary", "defects", "recommendations", "passed", "saved", "created_at", "updated_at"},
	values: func(record any) ([]any, error) {
		v, ok := record.(domain.VisualInspection)
		if !ok {
			return nil, wrongType("visual inspection", record)
		}
		return []any{v.ID, v.PointID, v.Summary, v.Defects, v.Recommendations, v.Passed, v.Saved, formatTime(v.CreatedAt), formatTime(v.UpdatedAt)}, nil
	},
	scan: func(rows *sql.Rows, into *memory.Snapshot) error {
		var v domain.VisualInspection
		var id, created, updated string
		if err := rows.Scan(&id, &v.PointID, &v.Summary, &v.Defects, &v.Recommendations, &v.Passed, &v.Saved, &created, &updated); err != nil {
			return err
		}
		base, err := parseBase(id, created, updated)
		if err != nil {
			return err
		}
		v.Base = base
		into.VisualInspections[v.ID] = v
		return nil
	},
}
