package txlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ledger-core/pkg/ledger"
	"ledger-core/pkg/store"
	"ledger-core/pkg/store/mock"

	"github.com/shopspring/decimal"
)

var epoch = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestLog(layer store.Layer) *Log {
	return New(layer, store.NewKeyPattern("ledger", ":"), DefaultConfig(), nil)
}

func record(n int, user string, kind ledger.Kind, net string) ledger.Transaction {
	amount := decimal.RequireFromString(net).Abs()
	var details ledger.Details = ledger.PaymentDetails{Provider: "Power", Account: "42"}
	if kind == ledger.KindDeposit {
		details = ledger.DepositDetails{Method: ledger.DepositCash}
	}
	return ledger.Transaction{
		ID:        fmt.Sprintf("tx-%d", n),
		UserID:    user,
		Reference: fmt.Sprintf("REF-2026-AAAAA-%06d", n),
		Kind:      kind,
		Direction: kind.Direction(),
		Amount:    amount,
		Net:       decimal.RequireFromString(net),
		Currency:  ledger.Currency,
		Status:    ledger.StatusSuccess,
		Details:   details,
		CreatedAt: epoch.Add(time.Duration(n) * time.Minute),
	}
}

func TestLog_AppendAndList(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(mock.New("docs"))

	for i := 1; i <= 3; i++ {
		if err := log.Append(ctx, record(i, "u1", ledger.KindPayment, "-10")); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}
	log.Append(ctx, record(4, "u2", ledger.KindPayment, "-10"))

	list, err := log.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(list))
	}
	for i, want := range []string{"tx-3", "tx-2", "tx-1"} {
		if list[i].ID != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, list[i].ID)
		}
	}

	all, _ := log.List(ctx, "")
	if len(all) != 4 || all[0].ID != "tx-4" {
		t.Errorf("Expected 4 records newest first, got %d starting %s", len(all), all[0].ID)
	}
}

func TestLog_StoredInAppendOrder(t *testing.T) {
	ctx := context.Background()
	layer := mock.New("docs")
	log := newTestLog(layer)

	log.Append(ctx, record(1, "u1", ledger.KindPayment, "-10"))
	log.Append(ctx, record(2, "u1", ledger.KindPayment, "-10"))

	var stored []ledger.Transaction
	if _, err := store.GetJSON(ctx, layer, "ledger:transactions", &stored); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if len(stored) != 2 || stored[0].ID != "tx-1" {
		t.Errorf("Expected append order in storage, got %+v", stored)
	}
}

func TestLog_RepeatedReadsIdentical(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(mock.New("docs"))
	log.Append(ctx, record(1, "u1", ledger.KindPayment, "-10"))
	log.Append(ctx, record(2, "u1", ledger.KindDeposit, "9.90"))

	first, _ := log.List(ctx, "u1")
	second, _ := log.List(ctx, "u1")
	if len(first) != len(second) {
		t.Fatalf("Expected identical reads, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || !first[i].Net.Equal(second[i].Net) {
			t.Errorf("Read %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestLog_DuplicateReference(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(mock.New("docs"))

	tx := record(1, "u1", ledger.KindPayment, "-10")
	if err := log.Append(ctx, tx); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dup := record(2, "u1", ledger.KindPayment, "-10")
	dup.Reference = tx.Reference
	if err := log.Append(ctx, dup); !errors.Is(err, ledger.ErrDuplicateReference) {
		t.Errorf("Expected ErrDuplicateReference, got %v", err)
	}

	list, _ := log.List(ctx, "u1")
	if len(list) != 1 {
		t.Errorf("Expected 1 record, got %d", len(list))
	}
}

func TestLog_DuplicateAcrossRestart(t *testing.T) {
	ctx := context.Background()
	layer := mock.New("docs")

	tx := record(1, "u1", ledger.KindPayment, "-10")
	newTestLog(layer).Append(ctx, tx)

	reopened := newTestLog(layer)
	ok, err := reopened.HasReference(ctx, tx.Reference)
	if err != nil || !ok {
		t.Fatalf("Expected reference to be found after reopen, got %v %v", ok, err)
	}

	dup := record(2, "u1", ledger.KindPayment, "-10")
	dup.Reference = tx.Reference
	if err := reopened.Append(ctx, dup); !errors.Is(err, ledger.ErrDuplicateReference) {
		t.Errorf("Expected ErrDuplicateReference, got %v", err)
	}
}

func TestLog_RejectsNonSuccess(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(mock.New("docs"))

	for _, status := range []ledger.Status{ledger.StatusPending, ledger.StatusFailed} {
		tx := record(1, "u1", ledger.KindPayment, "-10")
		tx.Status = status
		if err := log.Append(ctx, tx); err == nil {
			t.Errorf("Expected %s transaction to be refused", status)
		}
	}

	noRef := record(1, "u1", ledger.KindPayment, "-10")
	noRef.Reference = ""
	if err := log.Append(ctx, noRef); err == nil {
		t.Error("Expected transaction without reference to be refused")
	}
}

func TestLog_AppendFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	layer := mock.New("docs")
	log := newTestLog(layer)

	layer.SetFunc = func(context.Context, string, []byte, time.Duration) error {
		return store.ErrTimeout
	}
	tx := record(1, "u1", ledger.KindPayment, "-10")
	if err := log.Append(ctx, tx); !errors.Is(err, store.ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	layer.SetFunc = nil

	ok, _ := log.HasReference(ctx, tx.Reference)
	if ok {
		t.Error("Failed append should not register its reference")
	}
	if err := log.Append(ctx, tx); err != nil {
		t.Errorf("Expected retry to succeed, got %v", err)
	}
}

func TestLog_Get(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(mock.New("docs"))
	log.Append(ctx, record(1, "u1", ledger.KindPayment, "-10"))

	tx, err := log.Get(ctx, "tx-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, ok := tx.Details.(ledger.PaymentDetails); !ok {
		t.Errorf("Expected PaymentDetails, got %T", tx.Details)
	}
	if _, err := log.Get(ctx, "tx-9"); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLog_DebitedSince(t *testing.T) {
	ctx := context.Background()
	log := newTestLog(mock.New("docs"))

	log.Append(ctx, record(1, "u1", ledger.KindPayment, "-100"))
	log.Append(ctx, record(2, "u1", ledger.KindDeposit, "49.50"))
	log.Append(ctx, record(3, "u1", ledger.KindPayment, "-25.25"))
	log.Append(ctx, record(4, "u2", ledger.KindPayment, "-500"))

	total, err := log.DebitedSince(ctx, "u1", epoch)
	if err != nil {
		t.Fatalf("DebitedSince failed: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("125.25")) {
		t.Errorf("Expected 125.25, got %s", total)
	}

	later, _ := log.DebitedSince(ctx, "u1", epoch.Add(2*time.Minute))
	if !later.Equal(decimal.RequireFromString("25.25")) {
		t.Errorf("Expected 25.25, got %s", later)
	}
}

func TestLog_DuplicateFromAnotherWriter(t *testing.T) {
	ctx := context.Background()
	layer := mock.New("shared")
	first := newTestLog(layer)
	second := newTestLog(layer)

	// second reads before first writes, so its filter starts empty.
	if _, err := second.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if err := first.Append(ctx, record(1, "u1", ledger.KindPayment, "-10")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dup := record(1, "u2", ledger.KindPayment, "-20")
	dup.ID = "tx-other"
	if err := second.Append(ctx, dup); !errors.Is(err, ledger.ErrDuplicateReference) {
		t.Errorf("Expected ErrDuplicateReference, got %v", err)
	}
	if ok, _ := second.HasReference(ctx, record(1, "", ledger.KindPayment, "-1").Reference); !ok {
		t.Error("Expected reference written by another log to be found")
	}

	all, _ := first.List(ctx, "")
	if len(all) != 1 {
		t.Errorf("Expected 1 record, got %d", len(all))
	}
}
