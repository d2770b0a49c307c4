package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/feed"
	"lessonbook/backend/internal/store"
)

// The repos publish change notifications on every write, so the test needs
// a reachable NATS server as well as Postgres.
func integrationDeps(t *testing.T) (*bun.DB, *feed.Notifier) {
	t.Helper()

	databaseURL := strings.TrimSpace(os.Getenv("LESSONBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("LESSONBOOK_TEST_DATABASE_URL not set")
	}
	natsURL := strings.TrimSpace(os.Getenv("LESSONBOOK_TEST_NATS_URL"))
	if natsURL == "" {
		t.Skip("LESSONBOOK_TEST_NATS_URL not set")
	}

	// One connection so the session search_path sticks for every query.
	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	notifier, err := feed.Connect(natsURL, nil)
	if err != nil {
		t.Fatalf("feed.Connect error: %v", err)
	}
	t.Cleanup(notifier.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "lessonbook_test_" + randomHex(t, 8)
	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})
	if _, err := db.NewRaw("SET search_path TO " + schema).Exec(ctx); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	return db, notifier
}

func TestPostgresIntegration_SettingsRoundTrip(t *testing.T) {
	db, notifier := integrationDeps(t)
	repo := NewSettingsRepo(db, notifier, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// No row yet: Load falls back to the normalized defaults.
	cfg, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Sports == nil || len(cfg.Sports) != 0 {
		t.Fatalf("empty store did not yield defaults: %+v", cfg)
	}

	cfg.Sports = append(cfg.Sports, domain.NewSport("Tennis"))
	cfg.MinBookingNoticeMinutes = 120
	if err := repo.Save(ctx, cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if len(got.Sports) != 1 || got.Sports[0].Name != "Tennis" {
		t.Fatalf("reloaded sports = %+v", got.Sports)
	}
	if got.MinBookingNoticeMinutes != 120 {
		t.Fatalf("reloaded notice = %d", got.MinBookingNoticeMinutes)
	}

	// A second Save replaces the document wholesale.
	got.Sports = nil
	if err := repo.Save(ctx, got); err != nil {
		t.Fatalf("second Save error: %v", err)
	}
	got, err = repo.Load(ctx)
	if err != nil {
		t.Fatalf("third Load error: %v", err)
	}
	if len(got.Sports) != 0 {
		t.Fatalf("replace semantics violated: %+v", got.Sports)
	}
}

func TestPostgresIntegration_BookingLifecycle(t *testing.T) {
	db, notifier := integrationDeps(t)
	repo := NewBookingRepo(db, notifier, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	mk := func(start time.Time) domain.Booking {
		return domain.Booking{
			SportID:         "s1",
			SportName:       "Tennis",
			LocationID:      "l1",
			Date:            domain.DateKey(start, time.UTC),
			StartTime:       start,
			DurationMinutes: 60,
			CustomerName:    "Alex Martin",
		}
	}

	// Insert out of order; List must come back ordered by start time.
	late, err := repo.Create(ctx, mk(base.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	early, err := repo.Create(ctx, mk(base))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if early.ID == uuid.Nil {
		t.Fatalf("insert hook did not assign an id")
	}

	rows, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].ID != early.ID || rows[1].ID != late.ID {
		t.Fatalf("rows not ordered by start time: %v then %v", rows[0].StartTime, rows[1].StartTime)
	}

	early.Notes = "moved up"
	updated, err := repo.Update(ctx, early)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Notes != "moved up" {
		t.Fatalf("update lost the notes field")
	}

	missing := mk(base)
	missing.ID = uuid.Must(uuid.NewV7())
	if _, err := repo.Update(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update of unknown id: err = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, late.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(ctx, late.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestPostgresIntegration_ReplaceBusyBlocks(t *testing.T) {
	db, notifier := integrationDeps(t)
	repo := NewBookingRepo(db, notifier, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	block := func(calendarID string, start time.Time) domain.Booking {
		return domain.Booking{
			SportID:          "s1",
			SportName:        domain.BusyBlockSportName,
			LocationID:       "l1",
			Date:             domain.DateKey(start, time.UTC),
			StartTime:        start,
			DurationMinutes:  60,
			SourceCalendarID: calendarID,
		}
	}

	if err := repo.ReplaceBusyBlocks(ctx, "cal1", []domain.Booking{
		block("cal1", base),
		block("cal1", base.Add(2*time.Hour)),
	}); err != nil {
		t.Fatalf("first replace error: %v", err)
	}
	if err := repo.ReplaceBusyBlocks(ctx, "cal2", []domain.Booking{
		block("cal2", base.Add(4 * time.Hour)),
	}); err != nil {
		t.Fatalf("cal2 replace error: %v", err)
	}

	// Replacing cal1 swaps only cal1's blocks; cal2 keeps its own.
	if err := repo.ReplaceBusyBlocks(ctx, "cal1", []domain.Booking{
		block("cal1", base.Add(6 * time.Hour)),
	}); err != nil {
		t.Fatalf("second replace error: %v", err)
	}

	rows, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 after the swap", len(rows))
	}
	counts := map[string]int{}
	for _, b := range rows {
		counts[b.SourceCalendarID]++
	}
	if counts["cal1"] != 1 || counts["cal2"] != 1 {
		t.Fatalf("blocks per calendar = %v", counts)
	}

	// An empty list clears the calendar entirely.
	if err := repo.ReplaceBusyBlocks(ctx, "cal2", nil); err != nil {
		t.Fatalf("clearing replace error: %v", err)
	}
	rows, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(rows) != 1 || rows[0].SourceCalendarID != "cal1" {
		t.Fatalf("rows after clear = %+v", rows)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", m.name, err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
