package domain

// Clone helpers copy pointer fields so stored records never alias caller
// values.

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	if o.ScheduledDate != nil {
		d := *o.ScheduledDate
		o.ScheduledDate = &d
	}
	return o
}

// Clone returns a deep copy of the point.
func (p Point) Clone() Point {
	p.RoomID = cloneString(p.RoomID)
	return p
}

// Clone returns a deep copy of the measurement.
func (m Measurement) Clone() Measurement {
	if m.RCDType != nil {
		t := *m.RCDType
		m.RCDType = &t
	}
	for _, f := range numericFields {
		ref := f.ref(&m)
		*ref = cloneFloat(*ref)
	}
	for _, f := range boolFields {
		ref := f.ref(&m)
		*ref = cloneBool(*ref)
	}
	return m
}
