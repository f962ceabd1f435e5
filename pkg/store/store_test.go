package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ynai.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConfigValues(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.HasValue("test")
	if err != nil {
		t.Fatalf("HasValue failed: %v", err)
	}
	if ok {
		t.Error("fresh store should not have a value")
	}

	if err := s.SetValue("test", json.RawMessage(`"banana"`)); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	raw, ok, err := s.GetValue("test")
	if err != nil || !ok {
		t.Fatalf("GetValue failed: ok=%v err=%v", ok, err)
	}
	if string(raw) != `"banana"` {
		t.Errorf("GetValue = %s, want %q", raw, `"banana"`)
	}

	// Overwrite, then delete.
	if err := s.SetValue("test", json.RawMessage(`42`)); err != nil {
		t.Fatalf("SetValue overwrite failed: %v", err)
	}
	raw, _, _ = s.GetValue("test")
	if string(raw) != "42" {
		t.Errorf("after overwrite GetValue = %s, want 42", raw)
	}
	if err := s.DeleteValue("test"); err != nil {
		t.Fatalf("DeleteValue failed: %v", err)
	}
	if ok, _ := s.HasValue("test"); ok {
		t.Error("value should be gone after delete")
	}
}

func TestInsertTransactionIgnoresDuplicates(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertAccount(Account{ID: "acc1", Name: "Checking"}); err != nil {
		t.Fatalf("UpsertAccount failed: %v", err)
	}

	valueDate := "2022-10-24"
	row := Transaction{
		ID:          "t1",
		AccountID:   "acc1",
		State:       StatePending,
		BookingDate: "2022-10-24",
		Amount:      1.99,
		Currency:    "EUR",
		Description: "coffee",
		ValueDate:   &valueDate,
		ImportID:    "i1",
	}

	inserted, err := s.InsertTransaction(row)
	if err != nil {
		t.Fatalf("InsertTransaction failed: %v", err)
	}
	if !inserted {
		t.Error("first insert should report a written row")
	}

	row.Description = "changed"
	inserted, err = s.InsertTransaction(row)
	if err != nil {
		t.Fatalf("duplicate InsertTransaction failed: %v", err)
	}
	if inserted {
		t.Error("duplicate insert should be ignored")
	}

	got, ok, err := s.Transaction("t1")
	if err != nil || !ok {
		t.Fatalf("Transaction lookup failed: ok=%v err=%v", ok, err)
	}
	if got.Description != "coffee" {
		t.Errorf("row was updated in place: description = %q", got.Description)
	}
}

func TestMaxBookingDate(t *testing.T) {
	s := newTestStore(t)

	if _, ok, _ := s.MaxBookingDate(); ok {
		t.Error("empty ledger should have no watermark")
	}

	_ = s.UpsertAccount(Account{ID: "acc1", Name: "Checking"})
	for i, date := range []string{"2022-10-22", "2022-10-24", "2022-10-23"} {
		vd := date
		_, err := s.InsertTransaction(Transaction{
			ID: string(rune('a' + i)), AccountID: "acc1", State: StatePending,
			BookingDate: date, Currency: "EUR", ValueDate: &vd,
		})
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	latest, ok, err := s.MaxBookingDate()
	if err != nil || !ok {
		t.Fatalf("MaxBookingDate failed: ok=%v err=%v", ok, err)
	}
	if latest != "2022-10-24" {
		t.Errorf("watermark = %q, want 2022-10-24", latest)
	}
}

func TestPendingSettledAndMarkProcessed(t *testing.T) {
	s := newTestStore(t)
	_ = s.UpsertAccount(Account{ID: "acc1", Name: "Checking"})

	vd := "2022-10-24"
	rows := []Transaction{
		{ID: "t1", AccountID: "acc1", State: StatePending, BookingDate: "2022-10-24", Currency: "EUR", ValueDate: &vd},
		{ID: "t2", AccountID: "acc1", State: StatePending, BookingDate: "2022-10-24", Currency: "EUR", ValueDate: nil},
		{ID: "t3", AccountID: "acc1", State: StateProcessed, BookingDate: "2022-10-24", Currency: "EUR", ValueDate: &vd},
	}
	for _, r := range rows {
		if _, err := s.InsertTransaction(r); err != nil {
			t.Fatalf("insert %s failed: %v", r.ID, err)
		}
	}

	pending, err := s.PendingSettled("acc1")
	if err != nil {
		t.Fatalf("PendingSettled failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "t1" {
		t.Fatalf("PendingSettled = %+v, want exactly t1", pending)
	}

	if err := s.MarkProcessed([]string{"t1"}); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	got, _, _ := s.Transaction("t1")
	if got.State != StateProcessed {
		t.Errorf("t1 state = %q, want processed", got.State)
	}
	// The null-value-date row is untouched.
	got, _, _ = s.Transaction("t2")
	if got.State != StatePending {
		t.Errorf("t2 state = %q, want pending", got.State)
	}
}
