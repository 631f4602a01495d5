package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"cargo_ingest/internal/domain"
	"cargo_ingest/testdata/utils"
)

var ignoreTimestamps = cmpopts.IgnoreFields(domain.LoadRecord{}, "CreatedAt", "NotifiedAt")

func newTestStores(t *testing.T) (*LoadStore, *RunStore) {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	loads := NewLoadStore(db)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	loads.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return loads, NewRunStore(db)
}

func mustSave(t *testing.T, s *LoadStore, rec domain.LoadRecord) *domain.LoadRecord {
	t.Helper()
	saved, err := s.Save(context.Background(), &rec)
	if err != nil {
		t.Fatalf("save %s: %v", rec.TripID, err)
	}
	return saved
}

func tripIDs(records []domain.LoadRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.TripID)
	}
	return ids
}

func TestSaveAndFind(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStores(t)

	want := domain.LoadRecord{
		TripID:           "2024-000123",
		TransportType:    utils.Ptr("Rodoviário"),
		Origin:           utils.Ptr("Campinas - SP"),
		Destination:      utils.Ptr("Curitiba - PR"),
		ExpectedPickupAt: utils.Ptr("15/03/2024 08:00"),
		FreightValue:     utils.Ptr("R$ 4.500,00"),
	}
	saved := mustSave(t, s, want)
	if saved.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if saved.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	got, err := s.FindAll(ctx, domain.ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	want.ID = saved.ID
	if diff := cmp.Diff(want, got[0], ignoreTimestamps); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if !got[0].CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got[0].CreatedAt, saved.CreatedAt)
	}
}

func TestSaveDuplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStores(t)

	first := mustSave(t, s, domain.LoadRecord{TripID: "A", Origin: utils.Ptr("first")})

	_, err := s.Save(ctx, &domain.LoadRecord{TripID: "A", Origin: utils.Ptr("second")})
	var dup *domain.DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateKeyError, got %v", err)
	}
	if dup.TripID != "A" {
		t.Errorf("dup trip id = %q", dup.TripID)
	}

	got, err := s.FindAll(ctx, domain.ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(got) != 1 || got[0].ID != first.ID || *got[0].Origin != "first" {
		t.Errorf("first record changed: %+v", got)
	}
}

func TestExistsBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStores(t)
	mustSave(t, s, domain.LoadRecord{TripID: "A"})
	mustSave(t, s, domain.LoadRecord{TripID: "C"})

	tests := []struct {
		name string
		ids  []string
		want map[string]struct{}
	}{
		{name: "empty input", ids: nil, want: map[string]struct{}{}},
		{name: "none known", ids: []string{"X", "Y"}, want: map[string]struct{}{}},
		{
			name: "partial",
			ids:  []string{"A", "B", "C"},
			want: map[string]struct{}{"A": {}, "C": {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ExistsBatch(ctx, tt.ids)
			if err != nil {
				t.Fatalf("exists batch: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMarkNotified(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStores(t)
	mustSave(t, s, domain.LoadRecord{TripID: "A"})
	mustSave(t, s, domain.LoadRecord{TripID: "B"})

	if err := s.MarkNotified(ctx, "unknown"); err != nil {
		t.Fatalf("mark unknown: %v", err)
	}
	if err := s.MarkNotified(ctx, "A"); err != nil {
		t.Fatalf("mark A: %v", err)
	}

	pending, err := s.FindNotNotified(ctx, domain.ListQuery{Limit: 10})
	if err != nil {
		t.Fatalf("find not notified: %v", err)
	}
	if diff := cmp.Diff([]string{"B"}, tripIDs(pending)); diff != "" {
		t.Errorf("pending mismatch (-want +got):\n%s", diff)
	}

	all, err := s.FindAll(ctx, domain.ListQuery{Limit: 10, SortBy: domain.SortTripID, SortOrder: domain.SortAsc})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	first := *all[0].NotifiedAt

	if err := s.MarkNotified(ctx, "A"); err != nil {
		t.Fatalf("mark A again: %v", err)
	}
	all, err = s.FindAll(ctx, domain.ListQuery{Limit: 10, SortBy: domain.SortTripID, SortOrder: domain.SortAsc})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if !all[0].NotifiedAt.Equal(first) {
		t.Errorf("notified_at moved from %v to %v", first, *all[0].NotifiedAt)
	}

	total, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	notNotified, err := s.CountNotNotified(ctx)
	if err != nil {
		t.Fatalf("count not notified: %v", err)
	}
	if total != 2 || notNotified != 1 {
		t.Errorf("counts = %d/%d, want 2/1", total, notNotified)
	}
}

func TestFindAllSorting(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStores(t)

	mustSave(t, s, domain.LoadRecord{TripID: "late", Origin: utils.Ptr("Betim"), ExpectedPickupAt: utils.Ptr("20/03/2024 10:00")})
	mustSave(t, s, domain.LoadRecord{TripID: "garbage", Origin: utils.Ptr("Anápolis"), ExpectedPickupAt: utils.Ptr("a combinar")})
	mustSave(t, s, domain.LoadRecord{TripID: "early", Origin: utils.Ptr("Contagem"), ExpectedPickupAt: utils.Ptr("01/03/2024")})
	mustSave(t, s, domain.LoadRecord{TripID: "midday", ExpectedPickupAt: utils.Ptr("20/03/2024 09:30")})

	tests := []struct {
		name  string
		query domain.ListQuery
		want  []string
	}{
		{
			name:  "default is newest first",
			query: domain.ListQuery{Limit: 10},
			want:  []string{"midday", "early", "garbage", "late"},
		},
		{
			name:  "pickup ascending puts unparseable last",
			query: domain.ListQuery{Limit: 10, SortBy: domain.SortExpectedPickupAt, SortOrder: domain.SortAsc},
			want:  []string{"early", "midday", "late", "garbage"},
		},
		{
			name:  "pickup descending puts unparseable last",
			query: domain.ListQuery{Limit: 10, SortBy: domain.SortExpectedPickupAt, SortOrder: domain.SortDesc},
			want:  []string{"late", "midday", "early", "garbage"},
		},
		{
			name:  "origin ascending nulls last",
			query: domain.ListQuery{Limit: 10, SortBy: domain.SortOrigin, SortOrder: domain.SortAsc},
			want:  []string{"garbage", "late", "early", "midday"},
		},
		{
			name:  "unknown column falls back",
			query: domain.ListQuery{Limit: 10, SortBy: "password", SortOrder: domain.SortAsc},
			want:  []string{"midday", "early", "garbage", "late"},
		},
		{
			name:  "unknown direction falls back",
			query: domain.ListQuery{Limit: 10, SortBy: domain.SortTripID, SortOrder: "sideways"},
			want:  []string{"midday", "early", "garbage", "late"},
		},
		{
			name:  "pagination",
			query: domain.ListQuery{Limit: 2, Offset: 1, SortBy: domain.SortTripID, SortOrder: domain.SortAsc},
			want:  []string{"garbage", "late"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindAll(ctx, tt.query)
			if err != nil {
				t.Fatalf("find all: %v", err)
			}
			if diff := cmp.Diff(tt.want, tripIDs(got)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindAllSortingImpossiblePickupDates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStores(t)

	mustSave(t, s, domain.LoadRecord{TripID: "late", ExpectedPickupAt: utils.Ptr("20/03/2024 10:00")})
	mustSave(t, s, domain.LoadRecord{TripID: "feb31", ExpectedPickupAt: utils.Ptr("31/02/2024")})
	mustSave(t, s, domain.LoadRecord{TripID: "early", ExpectedPickupAt: utils.Ptr("01/03/2024")})
	mustSave(t, s, domain.LoadRecord{TripID: "hour24", ExpectedPickupAt: utils.Ptr("15/03/2024 24:00")})
	mustSave(t, s, domain.LoadRecord{TripID: "hour25", ExpectedPickupAt: utils.Ptr("15/03/2024 25:00")})

	tests := []struct {
		order domain.SortOrder
		want  []string
	}{
		{order: domain.SortAsc, want: []string{"early", "late", "feb31", "hour24", "hour25"}},
		{order: domain.SortDesc, want: []string{"late", "early", "hour25", "hour24", "feb31"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			got, err := s.FindAll(ctx, domain.ListQuery{
				Limit: 10, SortBy: domain.SortExpectedPickupAt, SortOrder: tt.order,
			})
			if err != nil {
				t.Fatalf("find all: %v", err)
			}
			if diff := cmp.Diff(tt.want, tripIDs(got)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunStore(t *testing.T) {
	ctx := context.Background()
	_, s := newTestStores(t)

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("latest on empty: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil run, got %+v", latest)
	}

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	older := &domain.IngestionRun{
		ID:        uuid.NewString(),
		StartedAt: started.Add(-10 * time.Minute),
		Status:    domain.RunStatusFailed,
		Error:     utils.Ptr("portal authentication failed"),
	}
	if err := s.Record(ctx, older); err != nil {
		t.Fatalf("record older: %v", err)
	}

	run := &domain.IngestionRun{
		ID:         uuid.NewString(),
		StartedAt:  started,
		FinishedAt: utils.Ptr(started.Add(3 * time.Second)),
		Status:     domain.RunStatusCompleted,
		Discovered: 3,
		Processed:  1,
	}
	if err := s.Record(ctx, run); err != nil {
		t.Fatalf("record: %v", err)
	}
	run.Failed = 1
	if err := s.Record(ctx, run); err != nil {
		t.Fatalf("record update: %v", err)
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
