package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/addressing"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
)

func TestShareRepositoryGet(t *testing.T) {
	mockPool := newMockPool(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"client_id", "share_id", "checkpoint_index", "total_bps", "created_at", "updated_at",
	}).AddRow("client-1", "revenue", "3", int32(7500), now, now)

	mockPool.ExpectQuery("FROM balance_shares").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)

	repo := newShareRepositoryWithQuerier(mockPool)
	share, err := repo.Get(context.Background(), "client-1", "revenue")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if share.ClientID != "client-1" || share.ShareID != "revenue" {
		t.Fatalf("unexpected identity: %+v", share)
	}
	if share.CheckpointIndex != 3 {
		t.Fatalf("expected checkpoint index 3, got %d", share.CheckpointIndex)
	}
	if share.TotalBps != 7500 {
		t.Fatalf("expected total bps 7500, got %d", share.TotalBps)
	}

	assertExpectations(t, mockPool)
}

func TestShareRepositoryGetNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery("FROM balance_shares").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	repo := newShareRepositoryWithQuerier(mockPool)
	_, err := repo.Get(context.Background(), "client-1", "missing")
	if !errors.Is(err, domain.ErrShareNotFound) {
		t.Fatalf("expected ErrShareNotFound, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestShareRepositoryGetQueriesByBaseSlot(t *testing.T) {
	mockPool := newMockPool(t)
	slot := addressing.BaseSlot("client-1", "revenue")

	mockPool.ExpectQuery("FROM balance_shares").
		WithArgs(slot[:]).
		WillReturnError(pgx.ErrNoRows)

	repo := newShareRepositoryWithQuerier(mockPool)
	_, err := repo.Get(context.Background(), "client-1", "revenue")
	if !errors.Is(err, domain.ErrShareNotFound) {
		t.Fatalf("expected ErrShareNotFound, got %v", err)
	}

	assertExpectations(t, mockPool)
}
