package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsconsole/dispatch/internal/model"
)

// Ledger is the in-memory boarding journal for one execution. It keeps
// at most one record per passenger: a later decision for the same
// passenger replaces the earlier one, so re-scanning or correcting a
// mistake never produces duplicates. The owning controller serializes
// access.
type Ledger struct {
	roster  []model.Employee
	records map[uuid.UUID]model.CheckInRecord
}

// LedgerEntry is one manifest row in a snapshot: the passenger plus the
// current decision, if any. A nil Record means the passenger is still
// pending.
type LedgerEntry struct {
	Employee model.Employee       `json:"employee"`
	Record   *model.CheckInRecord `json:"record"`
}

func NewLedger(roster []model.Employee) *Ledger {
	return &Ledger{
		roster:  roster,
		records: make(map[uuid.UUID]model.CheckInRecord, len(roster)),
	}
}

// Record inserts or replaces the boarding decision for a passenger.
// Recording an identical outcome is a no-op. Passengers not on the
// roster are rejected with ErrNotOnManifest and leave the ledger
// untouched.
func (l *Ledger) Record(employeeID uuid.UUID, status model.CheckInStatus, at time.Time, location *model.LocationSample) error {
	if !l.onRoster(employeeID) {
		return ErrNotOnManifest
	}
	if existing, ok := l.records[employeeID]; ok && existing.Status == status {
		return nil
	}

	record := model.CheckInRecord{
		EmployeeID: employeeID,
		Status:     status,
		RecordedAt: at,
	}
	if location != nil {
		record.Lat = &location.Lat
		record.Lng = &location.Lng
	}
	l.records[employeeID] = record
	return nil
}

// ResolveScan matches a scanned code against the roster's national ids.
// A miss is informational for the caller; no record is created.
func (l *Ledger) ResolveScan(code string) (*model.Employee, error) {
	for i := range l.roster {
		if l.roster[i].NationalID == code {
			return &l.roster[i], nil
		}
	}
	return nil, ErrNotOnManifest
}

// Snapshot returns the ledger in manifest order, one entry per roster
// member, pending ones included.
func (l *Ledger) Snapshot() []LedgerEntry {
	entries := make([]LedgerEntry, 0, len(l.roster))
	for _, employee := range l.roster {
		entry := LedgerEntry{Employee: employee}
		if record, ok := l.records[employee.ID]; ok {
			entry.Record = &record
		}
		entries = append(entries, entry)
	}
	return entries
}

// Records returns only the recorded decisions, in manifest order. This
// is the payload persisted at finish.
func (l *Ledger) Records() []model.CheckInRecord {
	records := make([]model.CheckInRecord, 0, len(l.records))
	for _, employee := range l.roster {
		if record, ok := l.records[employee.ID]; ok {
			records = append(records, record)
		}
	}
	return records
}

func (l *Ledger) onRoster(employeeID uuid.UUID) bool {
	for i := range l.roster {
		if l.roster[i].ID == employeeID {
			return true
		}
	}
	return false
}
