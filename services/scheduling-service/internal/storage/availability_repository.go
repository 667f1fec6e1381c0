package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/slotmeet/libs/db"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/slotmeet/services/scheduling-service/internal/model"
)

type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

// ListByUser returns the user's rules monday first, then by start time.
func (r *AvailabilityRepository) ListByUser(ctx context.Context, userID string) ([]model.Availability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id::text, day_of_week, start_time::text, end_time::text, is_available, created_at
		FROM availabilities
		WHERE user_id = $1
		ORDER BY array_position(ARRAY['monday','tuesday','wednesday','thursday','friday','saturday','sunday'], day_of_week),
			start_time, end_time
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Availability
	for rows.Next() {
		var (
			a          model.Availability
			day, start string
			end        *string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &day, &start, &end, &a.IsAvailable, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeRule(&a, day, start, end); err != nil {
			return nil, fmt.Errorf("availability %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func decodeRule(a *model.Availability, day, start string, end *string) error {
	d, ok := availability.ParseWeekday(day)
	if !ok {
		return fmt.Errorf("unknown day_of_week %q", day)
	}
	s, err := availability.ParseTimeOfDay(start)
	if err != nil {
		return err
	}
	e := availability.DefaultEnd
	if end != nil {
		if e, err = availability.ParseTimeOfDay(*end); err != nil {
			return err
		}
	}
	a.DayOfWeek, a.StartTime, a.EndTime = d, s, e
	return nil
}

// Replace deletes every rule of the user and inserts rules in one transaction.
func (r *AvailabilityRepository) Replace(ctx context.Context, userID string, rules []availability.Rule) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM availabilities WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete availabilities: %w", err)
		}
		if len(rules) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, rule := range rules {
			batch.Queue(`
				INSERT INTO availabilities (user_id, day_of_week, start_time, end_time, is_available)
				VALUES ($1, $2, $3::time, $4::time, $5)
			`, userID, rule.Day.String(), rule.Start.String(), rule.End.String(), rule.Available)
		}
		results := tx.SendBatch(ctx, batch)
		for range rules {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("insert availability: %w", err)
			}
		}
		return results.Close()
	})
}
