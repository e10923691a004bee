package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inspectcore/pkg/domain"
)

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }
func sptr(v string) *string   { return &v }

func newTestStore(opts ...Option) *Store {
	seq := 0
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	opts = append([]Option{
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
		WithClock(func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		}),
	}, opts...)
	return NewStore(nil, opts...)
}

func passingSocket(pointID string) domain.Measurement {
	return domain.Measurement{
		PointID:           pointID,
		LoopImpedanceOhm:  fptr(0.8),
		PEContinuityOhm:   fptr(0.2),
		InsulationLNMOhm:  fptr(300),
		InsulationLPEMOhm: fptr(300),
		InsulationNPEMOhm: fptr(300),
		PolarityOK:        bptr(true),
	}
}

type fixture struct {
	client domain.Client
	order  domain.Order
	rooms  []domain.Room
	points []domain.Point
}

// seedOrder builds an order with two rooms, five socket points (rooms hold
// three and two of them) and three measurements.
func seedOrder(t *testing.T, store *Store) fixture {
	t.Helper()
	var f fixture
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		if f.client, err = tx.CreateClient(domain.Client{Name: "Acme"}); err != nil {
			return err
		}
		if f.order, err = tx.CreateOrder(domain.Order{ClientID: f.client.ID, ObjectName: "Plant"}); err != nil {
			return err
		}
		for _, name := range []string{"Kitchen", "Office"} {
			r, err := tx.CreateRoom(domain.Room{OrderID: f.order.ID, Name: name})
			if err != nil {
				return err
			}
			f.rooms = append(f.rooms, r)
		}
		for i := 0; i < 5; i++ {
			room := f.rooms[0].ID
			if i >= 3 {
				room = f.rooms[1].ID
			}
			p, err := tx.CreatePoint(domain.Point{OrderID: f.order.ID, RoomID: sptr(room), Label: fmt.Sprintf("S%d", i+1), Type: domain.PointSocket1P})
			if err != nil {
				return err
			}
			f.points = append(f.points, p)
		}
		for _, p := range f.points[:3] {
			if _, err := tx.CreateMeasurement(passingSocket(p.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

func TestStoreCreateAndView(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	err := store.View(context.Background(), func(v domain.TransactionView) error {
		if got := len(v.ListRoomsByOrder(f.order.ID)); got != 2 {
			t.Fatalf("expected 2 rooms, got %d", got)
		}
		points := v.ListPointsByOrder(f.order.ID)
		if len(points) != 5 {
			t.Fatalf("expected 5 points, got %d", len(points))
		}
		for i, p := range points {
			want := domain.PointUnmeasured
			if i < 3 {
				want = domain.PointOK
			}
			if p.Status != want {
				t.Fatalf("point %s: expected %s, got %s", p.Label, want, p.Status)
			}
		}
		order, ok := v.FindOrder(f.order.ID)
		if !ok || order.Status != domain.OrderDraft {
			t.Fatalf("expected draft order, got %+v", order)
		}
		if order.CreatedAt.IsZero() || order.ID == "" {
			t.Fatalf("expected stamped order, got %+v", order)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStoreDeleteOrderCascades(t *testing.T) {
	var logged []domain.Change
	store := newTestStore(WithCommitHook(func(_ context.Context, changes []domain.Change) error {
		logged = append([]domain.Change(nil), changes...)
		return nil
	}))
	f := seedOrder(t, store)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteOrder(f.order.ID)
	}); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if len(logged) != 11 {
		t.Fatalf("expected 11 deletions, got %d", len(logged))
	}
	for _, c := range logged {
		if c.Action != domain.ActionDelete {
			t.Fatalf("unexpected change %+v", c)
		}
	}
	if last := logged[len(logged)-1]; last.Entity != domain.EntityOrder {
		t.Fatalf("expected the order to be removed last, got %s", last.Entity)
	}
	snap := store.ExportState()
	if len(snap.Orders)+len(snap.Rooms)+len(snap.Points)+len(snap.Measurements) != 0 {
		t.Fatalf("expected empty order tree, got %+v", snap)
	}
	if len(snap.Clients) != 1 {
		t.Fatalf("client must survive order deletion")
	}
}

func TestStoreDeleteClientWithOrdersRejected(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	before := store.ExportState()
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteClient(f.client.ID)
	})
	if !domain.IsCannotDelete(err) {
		t.Fatalf("expected cannot_delete, got %v", err)
	}
	after := store.ExportState()
	if len(after.Clients) != len(before.Clients) || len(after.Orders) != len(before.Orders) {
		t.Fatalf("state changed after rejected delete")
	}
}

func TestStoreDeleteRoomDetachesPoints(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteRoom(f.rooms[0].ID)
	}); err != nil {
		t.Fatalf("delete room: %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		points := v.ListPointsByOrder(f.order.ID)
		if len(points) != 5 {
			t.Fatalf("points must stay in the order, got %d", len(points))
		}
		detached := 0
		for _, p := range points {
			if p.RoomID == nil {
				detached++
			}
		}
		if detached != 3 {
			t.Fatalf("expected 3 unassigned points, got %d", detached)
		}
		if _, ok := v.FindMeasurementByPoint(f.points[0].ID); !ok {
			t.Fatalf("measurements must survive room deletion")
		}
		return nil
	})
}

func TestStoreDeletePointRemovesReadings(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	target := f.points[0]
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateVisualInspection(domain.VisualInspection{PointID: target.ID, Passed: true, Saved: true}); err != nil {
			return err
		}
		return tx.DeletePoint(target.ID)
	})
	if err != nil {
		t.Fatalf("delete point: %v", err)
	}
	snap := store.ExportState()
	if len(snap.Measurements) != 2 || len(snap.VisualInspections) != 0 {
		t.Fatalf("unexpected leftovers: %d measurements, %d visual inspections", len(snap.Measurements), len(snap.VisualInspections))
	}
}

func TestStoreMeasurementDrivesPointStatus(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	target := f.points[3]
	var measurementID string
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		m := passingSocket(target.ID)
		m.LoopImpedanceOhm = fptr(5)
		created, err := tx.CreateMeasurement(m)
		if err != nil {
			return err
		}
		measurementID = created.ID
		return nil
	})
	if err != nil {
		t.Fatalf("create measurement: %v", err)
	}
	assertStatus(t, store, target.ID, domain.PointNotOK)

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateMeasurement(measurementID, func(m *domain.Measurement) error {
			m.LoopImpedanceOhm = fptr(1.2)
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update measurement: %v", err)
	}
	assertStatus(t, store, target.ID, domain.PointOK)

	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteMeasurement(measurementID)
	}); err != nil {
		t.Fatalf("delete measurement: %v", err)
	}
	assertStatus(t, store, target.ID, domain.PointUnmeasured)
}

func TestStorePointTypeChangeRecomputesStatus(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdatePoint(f.points[0].ID, func(p *domain.Point) error {
			p.Type = domain.PointRCD
			p.Status = domain.PointOK
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update point: %v", err)
	}
	assertStatus(t, store, f.points[0].ID, domain.PointNotOK)
}

func assertStatus(t *testing.T, store *Store, pointID string, want domain.PointStatus) {
	t.Helper()
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		p, ok := v.FindPoint(pointID)
		if !ok {
			t.Fatalf("point %s missing", pointID)
		}
		if p.Status != want {
			t.Fatalf("expected status %s, got %s", want, p.Status)
		}
		return nil
	})
}

func TestTransactionGuards(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	ctx := context.Background()
	other := seedOrder(t, store)

	cases := []struct {
		name  string
		run   func(tx domain.Transaction) error
		kind  domain.ErrorKind
		field string
	}{
		{"order for missing client", func(tx domain.Transaction) error {
			_, err := tx.CreateOrder(domain.Order{ClientID: "nope", ObjectName: "X"})
			return err
		}, domain.KindNotFound, ""},
		{"room for missing order", func(tx domain.Transaction) error {
			_, err := tx.CreateRoom(domain.Room{OrderID: "nope", Name: "X"})
			return err
		}, domain.KindNotFound, ""},
		{"point in foreign room", func(tx domain.Transaction) error {
			_, err := tx.CreatePoint(domain.Point{OrderID: f.order.ID, RoomID: sptr(other.rooms[0].ID), Label: "X", Type: domain.PointOther})
			return err
		}, domain.KindValidation, "room_id"},
		{"point in missing room", func(tx domain.Transaction) error {
			_, err := tx.CreatePoint(domain.Point{OrderID: f.order.ID, RoomID: sptr("nope"), Label: "X", Type: domain.PointOther})
			return err
		}, domain.KindNotFound, ""},
		{"second measurement", func(tx domain.Transaction) error {
			_, err := tx.CreateMeasurement(passingSocket(f.points[0].ID))
			return err
		}, domain.KindValidation, "point_id"},
		{"measurement missing reading", func(tx domain.Transaction) error {
			m := passingSocket(f.points[4].ID)
			m.PolarityOK = nil
			_, err := tx.CreateMeasurement(m)
			return err
		}, domain.KindValidation, string(domain.FieldPolarity)},
		{"measurement for missing point", func(tx domain.Transaction) error {
			_, err := tx.CreateMeasurement(passingSocket("nope"))
			return err
		}, domain.KindNotFound, ""},
		{"move room to other order", func(tx domain.Transaction) error {
			_, err := tx.UpdateRoom(f.rooms[0].ID, func(r *domain.Room) error {
				r.OrderID = other.order.ID
				return nil
			})
			return err
		}, domain.KindValidation, "order_id"},
		{"blank client name", func(tx domain.Transaction) error {
			_, err := tx.UpdateClient(f.client.ID, func(c *domain.Client) error {
				c.Name = "  "
				return nil
			})
			return err
		}, domain.KindValidation, "name"},
		{"unknown order status", func(tx domain.Transaction) error {
			_, err := tx.UpdateOrder(f.order.ID, func(o *domain.Order) error {
				o.Status = "archived"
				return nil
			})
			return err
		}, domain.KindValidation, "status"},
		{"failed visual without defects", func(tx domain.Transaction) error {
			_, err := tx.CreateVisualInspection(domain.VisualInspection{PointID: f.points[0].ID, Saved: true})
			return err
		}, domain.KindValidation, "defects"},
		{"update missing point", func(tx domain.Transaction) error {
			_, err := tx.UpdatePoint("nope", func(*domain.Point) error { return nil })
			return err
		}, domain.KindNotFound, ""},
		{"delete missing room", func(tx domain.Transaction) error {
			return tx.DeleteRoom("nope")
		}, domain.KindNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := store.ExportState()
			_, err := store.RunInTransaction(ctx, tc.run)
			if domain.KindOf(err) != tc.kind {
				t.Fatalf("expected %s, got %v", tc.kind, err)
			}
			if tc.field != "" && domain.FieldOf(err) != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, domain.FieldOf(err))
			}
			after := store.ExportState()
			if len(after.Points) != len(before.Points) || len(after.Measurements) != len(before.Measurements) || len(after.Orders) != len(before.Orders) {
				t.Fatalf("failed transaction leaked state")
			}
		})
	}
}

func TestStoreMutatorErrorAborts(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	sentinel := errors.New("stop")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateClient(f.client.ID, func(c *domain.Client) error {
			c.Name = "Changed"
			return sentinel
		})
		return err
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
	if got := store.ExportState().Clients[f.client.ID].Name; got != "Acme" {
		t.Fatalf("expected unchanged name, got %q", got)
	}
}

func TestStoreCommitHookFailureKeepsState(t *testing.T) {
	hookErr := errors.New("disk full")
	fail := false
	store := newTestStore(WithCommitHook(func(context.Context, []domain.Change) error {
		if fail {
			return hookErr
		}
		return nil
	}))
	f := seedOrder(t, store)
	fail = true
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteOrder(f.order.ID)
	})
	if !domain.IsStorage(err) || !errors.Is(err, hookErr) {
		t.Fatalf("expected storage error wrapping hook failure, got %v", err)
	}
	snap := store.ExportState()
	if len(snap.Points) != 5 || len(snap.Rooms) != 2 || len(snap.Measurements) != 3 {
		t.Fatalf("memory state diverged after failed commit: %+v", snap)
	}
}

type blockRule struct{}

func (blockRule) Name() string { return "no_lps" }
func (blockRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, c := range changes {
		if p, ok := c.After.(domain.Point); ok && p.Type == domain.PointLPS {
			res.Violations = append(res.Violations, domain.Violation{Rule: "no_lps", Severity: domain.SeverityBlock, Entity: domain.EntityPoint, EntityID: p.ID})
		}
	}
	return res, nil
}

func TestStoreBlockingRuleAborts(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockRule{})
	store := NewStore(engine)
	f := seedOrder(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreatePoint(domain.Point{OrderID: f.order.ID, Label: "LPS", Type: domain.PointLPS})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if got := len(store.ExportState().Points); got != 5 {
		t.Fatalf("expected 5 points, got %d", got)
	}
}

func TestStoreClosedAndCancelled(t *testing.T) {
	store := newTestStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.RunInTransaction(ctx, func(domain.Transaction) error { return nil }); !domain.IsStorage(err) {
		t.Fatalf("expected storage error for cancelled context, got %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil })
	if !errors.Is(err, domain.ErrStoreClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
	if err := store.View(context.Background(), func(domain.TransactionView) error { return nil }); !domain.IsStorage(err) {
		t.Fatalf("expected storage error from view, got %v", err)
	}
}

func TestStoreExportImportIsolation(t *testing.T) {
	store := newTestStore()
	f := seedOrder(t, store)
	snap := store.ExportState()
	fresh := newTestStore()
	fresh.ImportState(snap)
	p := snap.Points[f.points[0].ID]
	*p.RoomID = "tampered"
	_ = fresh.View(context.Background(), func(v domain.TransactionView) error {
		got, _ := v.FindPoint(f.points[0].ID)
		if got.RoomID == nil || *got.RoomID != f.rooms[0].ID {
			t.Fatalf("imported state shares memory with snapshot")
		}
		if len(v.ListClients()) != 1 {
			t.Fatalf("expected imported client")
		}
		return nil
	})
}

func TestStoreViewsNeverObservePartialCascade(t *testing.T) {
	store := NewStore(nil)
	f := seedOrder(t, store)
	measured := f.points[:3]

	var (
		wg   sync.WaitGroup
		done atomic.Bool
	)
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for first := true; first || !done.Load(); first = false {
				err := store.View(context.Background(), func(v domain.TransactionView) error {
					_, hasOrder := v.FindOrder(f.order.ID)
					rooms := len(v.ListRoomsByOrder(f.order.ID))
					points := len(v.ListPointsByOrder(f.order.ID))
					measurements := 0
					for _, p := range measured {
						if _, ok := v.FindMeasurementByPoint(p.ID); ok {
							measurements++
						}
					}
					before := hasOrder && rooms == 2 && points == 5 && measurements == 3
					after := !hasOrder && rooms == 0 && points == 0 && measurements == 0
					if !before && !after {
						return fmt.Errorf("partial state: order=%v rooms=%d points=%d measurements=%d", hasOrder, rooms, points, measurements)
					}
					return nil
				})
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}

	close(start)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteOrder(f.order.ID)
	})
	done.Store(true)
	wg.Wait()
	if err != nil {
		t.Fatalf("delete order: %v", err)
	}
}

func TestStoreSerializesConcurrentWriters(t *testing.T) {
	store := NewStore(nil)
	f := seedOrder(t, store)

	const writers = 25
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				_, err := tx.UpdateOrder(f.order.ID, func(o *domain.Order) error {
					o.Notes += "x"
					return nil
				})
				return err
			})
			if err != nil {
				t.Errorf("update order: %v", err)
			}
		}()
	}
	wg.Wait()

	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		order, _ := v.FindOrder(f.order.ID)
		if len(order.Notes) != writers {
			t.Fatalf("expected %d applied updates, got %d (%q)", writers, len(order.Notes), order.Notes)
		}
		return nil
	})
}
