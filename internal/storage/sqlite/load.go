package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"cargo_ingest/internal/domain"
)

const loadColumns = `id, trip_id, transport_type, origin, destination, product, equipment,
	expected_pickup_at, delivery_count, freight_value, finish_at, notified_at, created_at`

// pickupText rewrites DD/MM/YYYY[ HH:MM] as "YYYY-MM-DD HH:MM", which sorts
// chronologically as text. Anything else becomes NULL.
const pickupText = `CASE
	WHEN expected_pickup_at GLOB '[0-3][0-9]/[01][0-9]/[0-9][0-9][0-9][0-9] [0-2][0-9]:[0-5][0-9]*'
		THEN substr(expected_pickup_at, 7, 4) || '-' || substr(expected_pickup_at, 4, 2) || '-' ||
			substr(expected_pickup_at, 1, 2) || ' ' || substr(expected_pickup_at, 12, 5)
	WHEN expected_pickup_at GLOB '[0-3][0-9]/[01][0-9]/[0-9][0-9][0-9][0-9]'
		THEN substr(expected_pickup_at, 7, 4) || '-' || substr(expected_pickup_at, 4, 2) || '-' ||
			substr(expected_pickup_at, 1, 2) || ' 00:00'
END`

// pickupExpr keeps pickupText only when strftime reproduces it unchanged.
// SQLite rolls 31/02 over into March and rejects hours past 24, so impossible
// dates and times become NULL.
var pickupExpr = fmt.Sprintf(
	`CASE WHEN strftime('%%Y-%%m-%%d %%H:%%M', %[1]s) = (%[1]s) THEN (%[1]s) END`,
	"("+pickupText+")",
)

var sortColumns = map[domain.SortField]string{
	domain.SortCreatedAt:        "created_at",
	domain.SortExpectedPickupAt: pickupExpr,
	domain.SortTripID:           "trip_id",
	domain.SortOrigin:           "origin",
	domain.SortDestination:      "destination",
	domain.SortProduct:          "product",
}

type loadRow struct {
	ID               int64          `db:"id"`
	TripID           string         `db:"trip_id"`
	TransportType    *string        `db:"transport_type"`
	Origin           *string        `db:"origin"`
	Destination      *string        `db:"destination"`
	Product          *string        `db:"product"`
	Equipment        *string        `db:"equipment"`
	ExpectedPickupAt *string        `db:"expected_pickup_at"`
	DeliveryCount    *string        `db:"delivery_count"`
	FreightValue     *string        `db:"freight_value"`
	FinishAt         *string        `db:"finish_at"`
	NotifiedAt       sql.NullString `db:"notified_at"`
	CreatedAt        string         `db:"created_at"`
}

func (r loadRow) record() (domain.LoadRecord, error) {
	rec := domain.LoadRecord{
		ID:               r.ID,
		TripID:           r.TripID,
		TransportType:    r.TransportType,
		Origin:           r.Origin,
		Destination:      r.Destination,
		Product:          r.Product,
		Equipment:        r.Equipment,
		ExpectedPickupAt: r.ExpectedPickupAt,
		DeliveryCount:    r.DeliveryCount,
		FreightValue:     r.FreightValue,
		FinishAt:         r.FinishAt,
	}

	var err error
	if rec.CreatedAt, err = parseTime(r.CreatedAt); err != nil {
		return rec, err
	}
	if rec.NotifiedAt, err = parseNullTime(r.NotifiedAt); err != nil {
		return rec, err
	}
	return rec, nil
}

// LoadStore implements the load record store on SQLite.
type LoadStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewLoadStore(db *sqlx.DB) *LoadStore {
	return &LoadStore{db: db, now: time.Now}
}

// ExistsBatch returns the subset of tripIDs already stored.
func (s *LoadStore) ExistsBatch(ctx context.Context, tripIDs []string) (map[string]struct{}, error) {
	if len(tripIDs) == 0 {
		return make(map[string]struct{}), nil
	}

	query, args, err := sqlx.In(`SELECT trip_id FROM loads WHERE trip_id IN (?)`, tripIDs)
	if err != nil {
		return nil, fmt.Errorf("build existence query: %w", err)
	}

	var found []string
	if err := s.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, fmt.Errorf("check existing loads: %w", err)
	}

	result := make(map[string]struct{}, len(found))
	for _, id := range found {
		result[id] = struct{}{}
	}
	return result, nil
}

func (s *LoadStore) Save(ctx context.Context, record *domain.LoadRecord) (*domain.LoadRecord, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO loads (
			trip_id, transport_type, origin, destination, product, equipment,
			expected_pickup_at, delivery_count, freight_value, finish_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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
		formatTime(now),
	)

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return nil, &domain.DuplicateKeyError{TripID: record.TripID}
	}
	if err != nil {
		return nil, fmt.Errorf("insert load %s: %w", record.TripID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	saved := *record
	saved.ID = id
	saved.CreatedAt = now.Truncate(time.Microsecond)
	return &saved, nil
}

// MarkNotified stamps notified_at once. Unknown or already notified ids are a no-op.
func (s *LoadStore) MarkNotified(ctx context.Context, tripID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE loads SET notified_at = ? WHERE trip_id = ? AND notified_at IS NULL`,
		formatTime(s.now()), tripID,
	)
	if err != nil {
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
	query := fmt.Sprintf(`SELECT %s FROM loads %s ORDER BY %s LIMIT ? OFFSET ?`,
		loadColumns, where, orderBy(q))

	var rows []loadRow
	if err := s.db.SelectContext(ctx, &rows, query, q.Limit, q.Offset); err != nil {
		return nil, fmt.Errorf("list loads: %w", err)
	}

	records := make([]domain.LoadRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("scan load %s: %w", row.TripID, err)
		}
		records = append(records, rec)
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
