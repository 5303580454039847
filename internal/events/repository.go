package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

type repo struct {
	conn   driver.Conn
	logger *slog.Logger
}

// New creates an event log backed by a ClickHouse connection.
func New(conn driver.Conn, logger *slog.Logger) System {
	return &repo{
		conn:   conn,
		logger: logger.With("system", "events"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) EnsureTable(ctx context.Context) error {
	if err := r.conn.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	r.logger.Info("events table ready")
	return nil
}

func (r *repo) Append(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("prepare event batch: %w", err)
	}
	defer batch.Abort()

	for i := range events {
		if err := batch.AppendStruct(&events[i]); err != nil {
			return fmt.Errorf("append event %s: %w", events[i].EventID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send event batch: %w", err)
	}

	r.logger.Debug("events appended", "count", len(events))
	return nil
}

func (r *repo) Stats(ctx context.Context, days int) ([]CriterionStats, error) {
	if days < 1 || days > MaxDays {
		return nil, ErrInvalidWindow
	}

	q, args, err := statsQuery(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("build stats query: %w", err)
	}

	rows, err := r.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query criteria stats: %w", err)
	}
	defer rows.Close()

	stats := make([]CriterionStats, 0)
	for rows.Next() {
		var s CriterionStats
		if err := rows.Scan(
			&s.CriterionID,
			&s.CriterionText,
			&s.Total,
			&s.Matches,
			&s.AvgConfidence,
			&s.AvgLatencyMS,
		); err != nil {
			return nil, fmt.Errorf("scan criteria stats: %w", err)
		}
		s.MatchRate = matchRate(s.Matches, s.Total)
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (r *repo) Daily(ctx context.Context, days int) ([]DailyStats, error) {
	if days < 1 || days > MaxDays {
		return nil, ErrInvalidWindow
	}

	q, args, err := dailyQuery(time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, fmt.Errorf("build daily query: %w", err)
	}

	rows, err := r.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily stats: %w", err)
	}
	defer rows.Close()

	stats := make([]DailyStats, 0)
	for rows.Next() {
		var s DailyStats
		if err := rows.Scan(
			&s.Day,
			&s.Total,
			&s.Matches,
			&s.AvgConfidence,
			&s.AvgLatencyMS,
		); err != nil {
			return nil, fmt.Errorf("scan daily stats: %w", err)
		}
		s.MatchRate = matchRate(s.Matches, s.Total)
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (r *repo) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, ErrInvalidLimit
	}

	q, args, err := recentQuery(limit)
	if err != nil {
		return nil, fmt.Errorf("build recent query: %w", err)
	}
	return r.queryEvents(ctx, q, args)
}

func (r *repo) BySource(ctx context.Context, sourceHash string) ([]Event, error) {
	q, args, err := sourceQuery(sourceHash)
	if err != nil {
		return nil, fmt.Errorf("build source query: %w", err)
	}
	return r.queryEvents(ctx, q, args)
}

func (r *repo) queryEvents(ctx context.Context, q string, args []any) ([]Event, error) {
	rows, err := r.conn.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.ScanStruct(&e); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

func matchRate(matches, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(matches) / float64(total)
}
