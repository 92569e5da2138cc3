package postgres

import (
	"context"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/BCJdevelopment/balance-shares-protocol/internal/domain"
	"github.com/BCJdevelopment/balance-shares-protocol/internal/usecase"
)

// querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so each repository method can run against the pool or inside a caller's
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func txQuerier(tx usecase.Transaction) querier {
	return tx.(*Tx).PgxTx()
}

// Type conversion helpers. Balances, remainders, and checkpoint indexes are
// unsigned 64-bit values; they are stored as NUMERIC(20,0) because BIGINT
// cannot hold the upper half of the range.
func uint64ToNumeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

func numericToUint64(n pgtype.Numeric) uint64 {
	if !n.Valid || n.Int == nil {
		return 0
	}

	i := n.Int
	if n.Exp > 0 {
		i = new(big.Int).Mul(i, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
	}

	return i.Uint64()
}

// An open period's end checkpoint is stored as NULL; the sentinel never
// touches the database.
func endCheckpointToNumeric(v uint64) pgtype.Numeric {
	if v == domain.OpenEndCheckpoint {
		return pgtype.Numeric{}
	}

	return uint64ToNumeric(v)
}

func numericToEndCheckpoint(n pgtype.Numeric) uint64 {
	if !n.Valid {
		return domain.OpenEndCheckpoint
	}

	return numericToUint64(n)
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

// timeToNullTimestamptz maps the zero time to NULL.
func timeToNullTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}

	return pgtype.Timestamptz{Time: t, Valid: true}
}

func pgTimestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}

	return ts.Time
}
