package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"cargo_ingest/internal/domain"
)

const uniqueViolation = "23505"

const loadColumns = `id, trip_id, transport_type, origin, destination, product, equipment,
	expected_pickup_at, delivery_count, freight_value, finish_at, notified_at, created_at`

// pickupExpr orders by the parsed pickup time. parse_pickup_at comes from
// migrations/postgres and yields NULL for values it cannot parse.
const pickupExpr = `parse_pickup_at(expected_pickup_at)`

var sortColumns = map[domain.SortField]string{
	domain.SortCreatedAt:        "created_at",
	domain.SortExpectedPickupAt: pickupExpr,
	domain.SortTripID:           "trip_id",
	domain.SortOrigin:           "origin",
	domain.SortDestination:      "destination",
	domain.SortProduct:          "product",
}

type LoadStore struct {
	db *sqlx.DB
}

func NewLoadStore(db *sqlx.DB) *LoadStore {
	return &LoadStore{db: db}
}

// ExistsBatch returns the subset of tripIDs already stored.
func (s *LoadStore) ExistsBatch(ctx context.Context, tripIDs []string) (map[string]struct{}, error) {
	if len(tripIDs) == 0 {
		return make(map[string]struct{}), nil
	}

	query := `SELECT trip_id FROM loads WHERE trip_id = ANY($1)`

	var found []string
	if err := s.db.SelectContext(ctx, &found, query, pq.Array(tripIDs)); err != nil {
		return nil, fmt.Errorf("check existing loads: %w", err)
	}

	result := make(map[string]struct{}, len(found))
	for _, id := range found {
		result[id] = struct{}{}
	}
	return result, nil
}

func (s *LoadStore) Save(ctx context.Context, record *domain.LoadRecord) (*domain.LoadRecord, error) {
	query := `
		INSERT INTO loads (
			trip_id, transport_type, origin, destination, product, equipment,
			expected_pickup_at, delivery_count, freight_value, finish_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING id, created_at`

	saved := *record
	err := s.db.QueryRowContext(ctx, query,
		record.TripID,
		record.TransportType,
		record.Origin,
		record.Destination,
		record.Product,
		record.Equipment,
		record.ExpectedPickupAt,
		record.DeliveryCount,
		record.FreightValue,
		record.FinishAt,
	).Scan(&saved.ID, &saved.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, &domain.DuplicateKeyError{TripID: record.TripID}
	}
	if err != nil {
		return nil, fmt.Errorf("insert load %s: %w", record.TripID, err)
	}

	return &saved, nil
}

// MarkNotified stamps notified_at once. Unknown or already notified ids are a no-op.
func (s *LoadStore) MarkNotified(ctx context.Context, tripID string) error {
	query := `UPDATE loads SET notified_at = NOW() WHERE trip_id = $1 AND notified_at IS NULL`

	if _, err := s.db.ExecContext(ctx, query, tripID); err != nil {
		return fmt.Errorf("mark load %s notified: %w", tripID, err)
	}
	return nil
}

func (s *LoadStore) FindAll(ctx context.Context, q domain.ListQuery) ([]domain.LoadRecord, error) {
	return s.find(ctx, "", q)
}

func (s *LoadStore) FindNotNotified(ctx context.Context, q domain.ListQuery) ([]domain.LoadRecord, error) {
	return s.find(ctx, "WHERE notified_at IS NULL", q)
}

func (s *LoadStore) find(ctx context.Context, where string, q domain.ListQuery) ([]domain.LoadRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM loads %s ORDER BY %s LIMIT $1 OFFSET $2`,
		loadColumns, where, orderBy(q))

	records := []domain.LoadRecord{}
	if err := s.db.SelectContext(ctx, &records, query, q.Limit, q.Offset); err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}
	return records, nil
}

func (s *LoadStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM loads`)
}

func (s *LoadStore) CountNotNotified(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM loads WHERE notified_at IS NULL`)
}

func (s *LoadStore) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("count loads: %w", err)
	}
	return n, nil
}

func orderBy(q domain.ListQuery) string {
	q = q.Normalized()
	dir := "DESC"
	if q.SortOrder == domain.SortAsc {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s NULLS LAST, id %s", sortColumns[q.SortBy], dir, dir)
}
