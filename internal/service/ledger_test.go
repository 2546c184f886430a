package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/opsconsole/dispatch/internal/model"
)

func testRoster(n int) []model.Employee {
	roster := make([]model.Employee, 0, n)
	for i := 0; i < n; i++ {
		roster = append(roster, model.Employee{
			ID:         uuid.New(),
			FullName:   "Passenger " + string(rune('A'+i)),
			NationalID: string(rune('1' + i)),
		})
	}
	return roster
}

func TestLedgerRecordIdempotent(t *testing.T) {
	roster := testRoster(2)
	ledger := NewLedger(roster)
	now := time.Now().UTC()

	if err := ledger.Record(roster[0].ID, model.CheckInStatusBoarded, now, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.Record(roster[0].ID, model.CheckInStatusBoarded, now.Add(time.Minute), nil); err != nil {
		t.Fatalf("repeat record: %v", err)
	}

	records := ledger.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Status != model.CheckInStatusBoarded {
		t.Fatalf("expected BOARDED, got %s", records[0].Status)
	}
	if !records[0].RecordedAt.Equal(now) {
		t.Fatalf("identical repeat must be a no-op, timestamp changed")
	}
}

func TestLedgerRecordLastWriteWins(t *testing.T) {
	roster := testRoster(1)
	ledger := NewLedger(roster)
	now := time.Now().UTC()

	if err := ledger.Record(roster[0].ID, model.CheckInStatusBoarded, now, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.Record(roster[0].ID, model.CheckInStatusNoShow, now.Add(time.Minute), nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	records := ledger.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record after overwrite, got %d", len(records))
	}
	if records[0].Status != model.CheckInStatusNoShow {
		t.Fatalf("expected NO_SHOW after overwrite, got %s", records[0].Status)
	}
}

func TestLedgerRejectsOffRoster(t *testing.T) {
	ledger := NewLedger(testRoster(1))

	err := ledger.Record(uuid.New(), model.CheckInStatusBoarded, time.Now(), nil)
	if !errors.Is(err, ErrNotOnManifest) {
		t.Fatalf("expected ErrNotOnManifest, got %v", err)
	}
	if len(ledger.Records()) != 0 {
		t.Fatal("off-roster record must not be stored")
	}
}

func TestLedgerResolveScan(t *testing.T) {
	roster := []model.Employee{
		{ID: uuid.New(), FullName: "E1", NationalID: "111"},
	}
	ledger := NewLedger(roster)

	if _, err := ledger.ResolveScan("999"); !errors.Is(err, ErrNotOnManifest) {
		t.Fatalf("expected ErrNotOnManifest for unknown code, got %v", err)
	}
	if len(ledger.Records()) != 0 {
		t.Fatal("scan miss must not create a record")
	}

	employee, err := ledger.ResolveScan("111")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if employee.ID != roster[0].ID {
		t.Fatalf("resolved wrong employee")
	}
}

func TestLedgerSnapshotManifestOrder(t *testing.T) {
	roster := testRoster(3)
	ledger := NewLedger(roster)
	now := time.Now().UTC()

	// Record out of manifest order.
	if err := ledger.Record(roster[2].ID, model.CheckInStatusBoarded, now, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ledger.Record(roster[0].ID, model.CheckInStatusNoShow, now, nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	snapshot := ledger.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("snapshot must cover the whole roster, got %d entries", len(snapshot))
	}
	for i, entry := range snapshot {
		if entry.Employee.ID != roster[i].ID {
			t.Fatalf("snapshot out of manifest order at %d", i)
		}
	}
	if snapshot[0].Record == nil || snapshot[0].Record.Status != model.CheckInStatusNoShow {
		t.Fatal("first roster member should be NO_SHOW")
	}
	if snapshot[1].Record != nil {
		t.Fatal("second roster member should be pending")
	}
	if snapshot[2].Record == nil || snapshot[2].Record.Status != model.CheckInStatusBoarded {
		t.Fatal("third roster member should be BOARDED")
	}

	records := ledger.Records()
	if len(records) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(records))
	}
	if records[0].EmployeeID != roster[0].ID || records[1].EmployeeID != roster[2].ID {
		t.Fatal("records must come out in manifest order")
	}
}

func TestLedgerRecordCapturesLocation(t *testing.T) {
	roster := testRoster(1)
	ledger := NewLedger(roster)
	sample := model.LocationSample{Lat: -11.77, Lng: -75.50, DeviceTime: time.Now()}

	if err := ledger.Record(roster[0].ID, model.CheckInStatusBoarded, time.Now(), &sample); err != nil {
		t.Fatalf("record: %v", err)
	}

	records := ledger.Records()
	if records[0].Lat == nil || *records[0].Lat != sample.Lat {
		t.Fatal("check-in location not captured")
	}
}
