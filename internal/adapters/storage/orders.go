package storage

// orders.go — SQLite persistence for the execution trail.
//
// Tables:
//   order_sequences — one immutable row per terminal sequence
//   order_history   — one row per submitted leg, failures and unwinds included
//
// A sequence is written exactly once, when it reaches a terminal state.
// Unwinds append to order_history under the original correlation ID and
// never touch the sequence row: PARTIAL_FAILURE stays on record as what
// actually happened.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/kitebot/internal/domain"
)

// ─── Sequences ───────────────────────────────────────────────────────────────

// SaveOrderSequence persists a terminal sequence together with all of its
// leg results in one transaction.
func (s *SQLiteStore) SaveOrderSequence(ctx context.Context, seq domain.OrderSequence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveOrderSequence: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_sequences
			(correlation_id, symbol, strategy, state, quantity, expected_profit, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seq.CorrelationID,
		seq.Symbol,
		string(seq.Strategy),
		string(seq.State),
		seq.Quantity,
		seq.ExpectedProfit,
		s.stamp(seq.CreatedAt),
	); err != nil {
		return fmt.Errorf("storage.SaveOrderSequence: insert %s: %w", seq.CorrelationID, err)
	}

	for _, leg := range seq.Legs {
		if err := insertLeg(ctx, tx, seq.CorrelationID, leg, s.stamp(leg.Timestamp)); err != nil {
			return fmt.Errorf("storage.SaveOrderSequence: %s: %w", seq.CorrelationID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveOrderSequence: commit: %w", err)
	}
	return nil
}

// SaveUnwind appends the counter-order of an unwound sequence to the
// order history, as one more leg under the original correlation ID.
func (s *SQLiteStore) SaveUnwind(ctx context.Context, correlationID string, res domain.ExecutionResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveUnwind: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertLeg(ctx, tx, correlationID, res, s.stamp(res.Timestamp)); err != nil {
		return fmt.Errorf("storage.SaveUnwind: %s: %w", correlationID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveUnwind: commit: %w", err)
	}
	return nil
}

// GetSequence loads a persisted sequence with its legs in submission order.
func (s *SQLiteStore) GetSequence(ctx context.Context, correlationID string) (domain.OrderSequence, error) {
	var seq domain.OrderSequence
	var strategy, state, createdAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT correlation_id, symbol, strategy, state, quantity, expected_profit, created_at
		FROM order_sequences WHERE correlation_id = ?`, correlationID,
	).Scan(&seq.CorrelationID, &seq.Symbol, &strategy, &state, &seq.Quantity, &seq.ExpectedProfit, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return seq, fmt.Errorf("storage.GetSequence: %s: not found", correlationID)
	}
	if err != nil {
		return seq, fmt.Errorf("storage.GetSequence: %s: %w", correlationID, err)
	}

	seq.Strategy = domain.Strategy(strategy)
	seq.State = domain.SequenceState(state)
	seq.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return seq, fmt.Errorf("storage.GetSequence: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, leg, venue, side, quantity, price, order_type, product,
		       lot_size, order_id, status, message, created_at
		FROM order_history WHERE correlation_id = ?
		ORDER BY leg ASC, id ASC`, correlationID)
	if err != nil {
		return seq, fmt.Errorf("storage.GetSequence: query legs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var res domain.ExecutionResult
		var side, orderType, product, status, at string
		if err := rows.Scan(
			&res.Intent.Symbol, &res.Intent.Leg, &res.Intent.Venue, &side,
			&res.Intent.Quantity, &res.Intent.Price, &orderType, &product,
			&res.Intent.LotSize, &res.OrderID, &status, &res.Message, &at,
		); err != nil {
			return seq, fmt.Errorf("storage.GetSequence: scan leg: %w", err)
		}
		res.Intent.Side = domain.Side(side)
		res.Intent.OrderType = domain.OrderType(orderType)
		res.Intent.Product = domain.Product(product)
		res.Status = domain.ExecStatus(status)
		res.Timestamp, err = parseTime(at)
		if err != nil {
			return seq, fmt.Errorf("storage.GetSequence: %w", err)
		}
		seq.Legs = append(seq.Legs, res)
	}
	return seq, rows.Err()
}

// SequenceHistory returns the terminal sequences of the last lookbackDays,
// ascending by timestamp. lookbackDays <= 0 returns everything.
func (s *SQLiteStore) SequenceHistory(ctx context.Context, lookbackDays int) ([]domain.SequenceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT correlation_id, symbol, strategy, state, quantity, expected_profit, created_at
		FROM order_sequences WHERE created_at >= ?
		ORDER BY created_at ASC, correlation_id ASC`, s.cutoff(lookbackDays))
	if err != nil {
		return nil, fmt.Errorf("storage.SequenceHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SequenceRecord
	for rows.Next() {
		var r domain.SequenceRecord
		var strategy, state, createdAt string
		if err := rows.Scan(&r.CorrelationID, &r.Symbol, &strategy, &state,
			&r.Quantity, &r.ExpectedProfit, &createdAt); err != nil {
			return nil, fmt.Errorf("storage.SequenceHistory: scan row: %w", err)
		}
		r.Strategy = domain.Strategy(strategy)
		r.State = domain.SequenceState(state)
		r.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("storage.SequenceHistory: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── Order history ───────────────────────────────────────────────────────────

// OrderHistory returns the legs submitted in the last lookbackDays,
// ascending by timestamp. Empty symbol returns all symbols.
func (s *SQLiteStore) OrderHistory(ctx context.Context, symbol string, lookbackDays int) ([]domain.OrderRecord, error) {
	q := `SELECT id, correlation_id, symbol, leg, venue, side, quantity, price,
	             order_type, product, lot_size, order_id, status, message, created_at
	      FROM order_history
	      WHERE created_at >= ?`
	args := []any{s.cutoff(lookbackDays)}
	if symbol != "" {
		q += ` AND symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.OrderHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderRecord
	for rows.Next() {
		var r domain.OrderRecord
		var side, orderType, product, status, createdAt string
		if err := rows.Scan(
			&r.ID, &r.CorrelationID, &r.Symbol, &r.Leg, &r.Venue, &side,
			&r.Quantity, &r.Price, &orderType, &product, &r.LotSize,
			&r.OrderID, &status, &r.Message, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage.OrderHistory: scan row: %w", err)
		}
		r.Side = domain.Side(side)
		r.OrderType = domain.OrderType(orderType)
		r.Product = domain.Product(product)
		r.Status = domain.ExecStatus(status)
		r.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("storage.OrderHistory: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func insertLeg(ctx context.Context, tx *sql.Tx, correlationID string, res domain.ExecutionResult, at string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_history
			(correlation_id, symbol, leg, venue, side, quantity, price,
			 order_type, product, lot_size, order_id, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		correlationID,
		res.Intent.Symbol,
		res.Intent.Leg,
		res.Intent.Venue,
		string(res.Intent.Side),
		res.Intent.Quantity,
		res.Intent.Price,
		string(res.Intent.OrderType),
		string(res.Intent.Product),
		res.Intent.LotSize,
		res.OrderID,
		string(res.Status),
		res.Message,
		at,
	); err != nil {
		return fmt.Errorf("insert leg %d: %w", res.Intent.Leg, err)
	}
	return nil
}

// stamp serializes t, falling back to the wall clock when the caller
// left the timestamp zero.
func (s *SQLiteStore) stamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(timeLayout)
}
