package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"niftyfeed/internal/store"
)

func TestJournalCapture_SkipsSeedRows(t *testing.T) {
	st := store.New(testRegistry(t))
	st.Upsert("TCS-EQ", store.QuoteUpdate{Ltp: 3510, Close: 3500, Volume: 120000})
	repo := &stubRepo{}
	svc := &QuoteJournalService{Store: st, Repo: repo, Logger: zap.NewNop()}

	if err := svc.Capture(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(repo.snapshots) != 1 {
		t.Fatalf("snapshots=%d want 1", len(repo.snapshots))
	}
	row := repo.snapshots[0]
	if row.Symbol != "TCS-EQ" {
		t.Fatalf("symbol=%q want TCS-EQ", row.Symbol)
	}
	if !row.Ltp.Equal(decimal.NewFromInt(3510)) {
		t.Fatalf("ltp=%v want 3510", row.Ltp)
	}
	if !row.Change.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("change=%v want 10", row.Change)
	}
	if row.Signal != store.SignalHold {
		t.Fatalf("signal=%q want HOLD", row.Signal)
	}
	if row.Volume != 120000 {
		t.Fatalf("volume=%d want 120000", row.Volume)
	}
	if row.CapturedAt.IsZero() || row.QuoteTime.IsZero() {
		t.Fatalf("timestamps missing: %+v", row)
	}
}

func TestJournalCapture_EmptyTableNoInsert(t *testing.T) {
	st := store.New(testRegistry(t))
	repo := &stubRepo{snapshotErr: errors.New("should not be called")}
	svc := &QuoteJournalService{Store: st, Repo: repo}

	if err := svc.Capture(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(repo.snapshots) != 0 {
		t.Fatalf("snapshots=%d want 0", len(repo.snapshots))
	}
}

func TestJournalCapture_NoRepoNoop(t *testing.T) {
	st := store.New(testRegistry(t))
	svc := &QuoteJournalService{Store: st}
	if err := svc.Capture(context.Background()); err != nil {
		t.Fatalf("err=%v", err)
	}
}

func TestJournalCapture_InsertErrorPropagates(t *testing.T) {
	st := store.New(testRegistry(t))
	st.Upsert("TCS-EQ", store.QuoteUpdate{Ltp: 3510})
	repo := &stubRepo{snapshotErr: errors.New("db down")}
	svc := &QuoteJournalService{Store: st, Repo: repo}

	if err := svc.Capture(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
