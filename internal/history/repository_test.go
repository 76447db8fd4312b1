package history

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/focuserd/internal/infrastructure/config"
	"github.com/nerrad567/focuserd/internal/infrastructure/database"
	"github.com/nerrad567/focuserd/migrations"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{Path: ":memory:", BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func ptr(v float64) *float64 { return &v }

func TestRecord_FillsIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)

	e := &Entry{Command: "initialize", Caller: "127.0.0.1", Result: 0, ResultLabel: "command succeeded"}
	if err := repo.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if !strings.HasPrefix(e.ID, "cmd-") || len(e.ID) != 12 {
		t.Errorf("ID = %q, want cmd- plus 8 characters", e.ID)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestList_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 21, 30, 0, 123456000, time.UTC)
	in := &Entry{
		Command:     "set_channel",
		Channel:     "tube",
		Position:    ptr(12.5),
		Offset:      true,
		Caller:      "10.2.6.1",
		Result:      1,
		ResultLabel: "error: command failed",
		DurationMS:  830,
		CreatedAt:   at,
	}
	if err := repo.Record(ctx, in); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("Total = %d, len = %d, want 1, 1", res.Total, len(res.Entries))
	}
	got := res.Entries[0]
	if got.Command != "set_channel" || got.Channel != "tube" || !got.Offset {
		t.Errorf("entry = %+v", got)
	}
	if got.Position == nil || *got.Position != 12.5 {
		t.Errorf("Position = %v, want 12.5", got.Position)
	}
	if got.Result != 1 || got.DurationMS != 830 {
		t.Errorf("Result = %d, DurationMS = %d", got.Result, got.DurationMS)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, at)
	}
}

func TestList_NullableFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Record(ctx, &Entry{Command: "home", Caller: "::1"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := res.Entries[0]
	if got.Channel != "" || got.Position != nil || got.Offset {
		t.Errorf("entry = %+v, want empty channel, nil position", got)
	}
}

func TestList_FilterAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	seed := []Entry{
		{Command: "initialize", Caller: "a", CreatedAt: base},
		{Command: "set_channel", Channel: "tube", Caller: "a", CreatedAt: base.Add(time.Minute)},
		{Command: "set_channel", Channel: "camera", Caller: "a", CreatedAt: base.Add(2 * time.Minute)},
		{Command: "set_channel", Channel: "tube", Caller: "a", CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range seed {
		if err := repo.Record(ctx, &seed[i]); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{Command: "set_channel", Channel: "tube"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("Total = %d, want 2", res.Total)
	}
	if !res.Entries[0].CreatedAt.After(res.Entries[1].CreatedAt) {
		t.Error("entries not ordered newest first")
	}

	page, err := repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 4 || len(page.Entries) != 1 {
		t.Fatalf("Total = %d, len = %d, want 4, 1", page.Total, len(page.Entries))
	}
	if page.Entries[0].Channel != "camera" {
		t.Errorf("second newest channel = %q, want camera", page.Entries[0].Channel)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newTestRepo(t)

	tests := []struct {
		in, want int
	}{
		{0, 50},
		{-3, 50},
		{10, 10},
		{1000, 200},
	}
	for _, tt := range tests {
		res, err := repo.List(context.Background(), Filter{Limit: tt.in})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if res.Limit != tt.want {
			t.Errorf("Limit %d clamped to %d, want %d", tt.in, res.Limit, tt.want)
		}
		if res.Entries == nil {
			t.Error("Entries = nil, want empty slice")
		}
	}
}
