package domain

import (
	"errors"
	"testing"
	"time"
)

func TestAccountSharePeriod_SettleableThrough(t *testing.T) {
	tests := []struct {
		name    string
		start   uint64
		end     uint64
		current uint64
		want    uint64
		wantOK  bool
	}{
		{
			name:    "open period settles through current",
			start:   2,
			end:     OpenEndCheckpoint,
			current: 7,
			want:    7,
			wantOK:  true,
		},
		{
			name:    "closed period stops before its end",
			start:   0,
			end:     3,
			current: 10,
			want:    2,
			wantOK:  true,
		},
		{
			name:    "closed period ending past current settles through current",
			start:   0,
			end:     5,
			current: 3,
			want:    3,
			wantOK:  true,
		},
		{
			name:    "period closed at its start covers nothing",
			start:   0,
			end:     0,
			current: 4,
			wantOK:  false,
		},
		{
			name:    "later period closed at its start covers nothing",
			start:   3,
			end:     3,
			current: 3,
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &AccountSharePeriod{StartCheckpoint: tt.start, EndCheckpoint: tt.end}

			got, ok := p.SettleableThrough(tt.current)
			if ok != tt.wantOK {
				t.Fatalf("SettleableThrough(%d) ok = %v, want %v", tt.current, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("SettleableThrough(%d) = %d, want %d", tt.current, got, tt.want)
			}
		})
	}
}

func TestAccountSharePeriod_Locked(t *testing.T) {
	now := time.Now().UTC()

	p := &AccountSharePeriod{RemovableAt: now.Add(time.Hour)}
	if !p.Locked(now) {
		t.Error("expected period to be locked before removable time")
	}

	if p.Locked(now.Add(2 * time.Hour)) {
		t.Error("expected period to be unlocked after removable time")
	}
}

func TestWithdrawalCheckpoint_Advance(t *testing.T) {
	now := time.Now().UTC()

	w := &WithdrawalCheckpoint{CheckpointIndex: 5, PreviousBalance: 100}

	if err := w.Advance(5, 250, now); err != nil {
		t.Fatalf("same-index advance: %v", err)
	}

	if w.PreviousBalance != 250 {
		t.Errorf("previous balance = %d, want 250", w.PreviousBalance)
	}

	if err := w.Advance(9, 10, now); err != nil {
		t.Fatalf("forward advance: %v", err)
	}

	err := w.Advance(4, 0, now)
	if !errors.Is(err, ErrWithdrawalRegression) {
		t.Errorf("expected ErrWithdrawalRegression, got %v", err)
	}

	if w.CheckpointIndex != 9 {
		t.Errorf("regression must not change state, index = %d", w.CheckpointIndex)
	}
}

func TestPeriodIndexError(t *testing.T) {
	err := &PeriodIndexError{Requested: 5, Max: 1}

	if !errors.Is(err, &PeriodIndexError{}) {
		t.Error("errors.Is should match any PeriodIndexError")
	}

	want := "invalid account share period index: requested 5, max 1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
