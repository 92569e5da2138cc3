package dto

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// bpsToPercent renders a basis-point allocation as an exact decimal
// percentage, e.g. 2550 -> "25.5".
func bpsToPercent(bps uint16) decimal.Decimal {
	return decimal.New(int64(bps), -2)
}

// ShareStatusResponse represents a balance share root in API responses.
type ShareStatusResponse struct {
	ClientID        string          `json:"client_id"`
	ShareID         string          `json:"share_id"`
	CheckpointIndex uint64          `json:"checkpoint_index"`
	TotalBps        uint16          `json:"total_bps"`
	TotalPercent    decimal.Decimal `json:"total_percent"`
}

// ShareStatusFromUseCase converts a share status to a response.
func ShareStatusFromUseCase(s *usecase.ShareStatus) *ShareStatusResponse {
	return &ShareStatusResponse{
		ClientID:        s.ClientID,
		ShareID:         s.ShareID,
		CheckpointIndex: s.CheckpointIndex,
		TotalBps:        s.TotalBps,
		TotalPercent:    bpsToPercent(s.TotalBps),
	}
}

// AccountShareResponse represents an account's share record.
type AccountShareResponse struct {
	ClientID       string    `json:"client_id"`
	ShareID        string    `json:"share_id"`
	AccountID      string    `json:"account_id"`
	MaxPeriodIndex uint64    `json:"max_period_index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AccountShareFromDomain converts a domain account share to a response.
func AccountShareFromDomain(a *domain.AccountShare) *AccountShareResponse {
	return &AccountShareResponse{
		ClientID:       a.ClientID,
		ShareID:        a.ShareID,
		AccountID:      a.AccountID,
		MaxPeriodIndex: a.MaxPeriodIndex,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// PeriodResponse represents one period of an account's timeline. An open
// period has no end_checkpoint.
type PeriodResponse struct {
	ClientID        string          `json:"client_id"`
	ShareID         string          `json:"share_id"`
	AccountID       string          `json:"account_id"`
	PeriodIndex     uint64          `json:"period_index"`
	Bps             uint16          `json:"bps"`
	Percent         decimal.Decimal `json:"percent"`
	StartCheckpoint uint64          `json:"start_checkpoint"`
	EndCheckpoint   *uint64         `json:"end_checkpoint,omitempty"`
	Open            bool            `json:"open"`
	InitializedAt   time.Time       `json:"initialized_at"`
	RemovableAt     time.Time       `json:"removable_at"`
	LastWithdrawnAt *time.Time      `json:"last_withdrawn_at,omitempty"`
}

// PeriodFromDomain converts a domain period to a response.
func PeriodFromDomain(p *domain.AccountSharePeriod) *PeriodResponse {
	resp := &PeriodResponse{
		ClientID:        p.ClientID,
		ShareID:         p.ShareID,
		AccountID:       p.AccountID,
		PeriodIndex:     p.PeriodIndex,
		Bps:             p.Bps,
		Percent:         bpsToPercent(p.Bps),
		StartCheckpoint: p.StartCheckpoint,
		Open:            p.IsOpen(),
		InitializedAt:   p.InitializedAt,
		RemovableAt:     p.RemovableAt,
	}
	if !p.IsOpen() {
		end := p.EndCheckpoint
		resp.EndCheckpoint = &end
	}
	if !p.LastWithdrawnAt.IsZero() {
		t := p.LastWithdrawnAt
		resp.LastWithdrawnAt = &t
	}

	return resp
}

// BalanceSumResponse represents one asset's accumulator within a checkpoint.
// Balance and remainder are decimal strings for the same reason deposit
// amounts are.
type BalanceSumResponse struct {
	ClientID        string    `json:"client_id"`
	ShareID         string    `json:"share_id"`
	CheckpointIndex uint64    `json:"checkpoint_index"`
	AssetID         string    `json:"asset_id"`
	Balance         string    `json:"balance"`
	Remainder       string    `json:"remainder"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BalanceSumFromDomain converts a domain balance sum to a response.
func BalanceSumFromDomain(s *domain.BalanceSum) *BalanceSumResponse {
	return &BalanceSumResponse{
		ClientID:        s.ClientID,
		ShareID:         s.ShareID,
		CheckpointIndex: s.CheckpointIndex,
		AssetID:         s.AssetID,
		Balance:         strconv.FormatUint(s.Balance, 10),
		Remainder:       strconv.FormatUint(s.Remainder, 10),
		UpdatedAt:       s.UpdatedAt,
	}
}

// DepositResponse reports where a deposit landed.
type DepositResponse struct {
	CheckpointIndex  uint64 `json:"checkpoint_index"`
	Balance          string `json:"balance"`
	OpenedCheckpoint bool   `json:"opened_checkpoint"`
}

// DepositFromUseCase converts a deposit result to a response.
func DepositFromUseCase(r *usecase.RecordDepositResult) *DepositResponse {
	return &DepositResponse{
		CheckpointIndex:  r.CheckpointIndex,
		Balance:          strconv.FormatUint(r.Balance, 10),
		OpenedCheckpoint: r.OpenedCheckpoint,
	}
}

// WithdrawResponse reports a settlement.
type WithdrawResponse struct {
	Amount          string `json:"amount"`
	PeriodIndex     uint64 `json:"period_index"`
	AssetID         string `json:"asset_id"`
	CheckpointIndex uint64 `json:"checkpoint_index"`
}

// WithdrawFromUseCase converts a withdraw result to a response.
func WithdrawFromUseCase(r *usecase.WithdrawResult) *WithdrawResponse {
	return &WithdrawResponse{
		Amount:          strconv.FormatUint(r.Amount, 10),
		PeriodIndex:     r.PeriodIndex,
		AssetID:         r.AssetID,
		CheckpointIndex: r.CheckpointIndex,
	}
}

// WithdrawableResponse reports a read-only settlement preview.
type WithdrawableResponse struct {
	PeriodIndex uint64 `json:"period_index"`
	AssetID     string `json:"asset_id"`
	Amount      string `json:"amount"`
}

// WithdrawalCheckpointResponse represents settlement progress for one asset
// of one period.
type WithdrawalCheckpointResponse struct {
	ClientID        string    `json:"client_id"`
	ShareID         string    `json:"share_id"`
	AccountID       string    `json:"account_id"`
	PeriodIndex     uint64    `json:"period_index"`
	AssetID         string    `json:"asset_id"`
	CheckpointIndex uint64    `json:"checkpoint_index"`
	PreviousBalance string    `json:"previous_balance"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WithdrawalCheckpointFromDomain converts a domain withdrawal checkpoint to
// a response.
func WithdrawalCheckpointFromDomain(w *domain.WithdrawalCheckpoint) *WithdrawalCheckpointResponse {
	return &WithdrawalCheckpointResponse{
		ClientID:        w.ClientID,
		ShareID:         w.ShareID,
		AccountID:       w.AccountID,
		PeriodIndex:     w.PeriodIndex,
		AssetID:         w.AssetID,
		CheckpointIndex: w.CheckpointIndex,
		PreviousBalance: strconv.FormatUint(w.PreviousBalance, 10),
		UpdatedAt:       w.UpdatedAt,
	}
}

// EventResponse represents a journal entry in API responses.
type EventResponse struct {
	ID            string         `json:"id"`
	ClientID      string         `json:"client_id"`
	ShareID       string         `json:"share_id"`
	AggregateID   string         `json:"aggregate_id"`
	AggregateType string         `json:"aggregate_type"`
	EventType     string         `json:"event_type"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	PublishedAt   *time.Time     `json:"published_at,omitempty"`
	Published     bool           `json:"published"`
}

// EventFromDomain converts a domain event to a response.
func EventFromDomain(e *domain.LedgerEvent) *EventResponse {
	return &EventResponse{
		ID:            e.ID,
		ClientID:      e.ClientID,
		ShareID:       e.ShareID,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     e.EventType,
		Payload:       e.Payload,
		CreatedAt:     e.CreatedAt,
		PublishedAt:   e.PublishedAt,
		Published:     e.Published,
	}
}

// EventsFromDomain converts domain events to responses.
func EventsFromDomain(events []*domain.LedgerEvent) []*EventResponse {
	result := make([]*EventResponse, len(events))
	for i, e := range events {
		result[i] = EventFromDomain(e)
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
