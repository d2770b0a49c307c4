package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"lessonbook/backend/internal/domain"
	"lessonbook/backend/internal/feed"
	"lessonbook/backend/internal/store"
)

// The settings aggregate is one JSONB document in a single-row table,
// replaced wholesale on every mutation. Two concurrent mutations race at
// this row and the later write wins.
const settingsRowID = 1

type settingsRow struct {
	bun.BaseModel `bun:"table:app_settings"`

	ID        int64           `bun:"id,pk"`
	Document  json.RawMessage `bun:"document,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

type SettingsRepo struct {
	db       *bun.DB
	notifier *feed.Notifier
	log      *slog.Logger
}

func NewSettingsRepo(db *bun.DB, notifier *feed.Notifier, log *slog.Logger) *SettingsRepo {
	if log == nil {
		log = slog.Default()
	}
	return &SettingsRepo{
		db:       db,
		notifier: notifier,
		log:      log.With(slog.String("component", "postgres.settings")),
	}
}

func (r *SettingsRepo) Load(ctx context.Context) (domain.AppConfig, error) {
	var row settingsRow
	err := r.db.NewSelect().
		Model(&row).
		Where("id = ?", settingsRowID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		cfg := domain.DefaultAppConfig()
		cfg.Normalize()
		return cfg, nil
	}
	if err != nil {
		return domain.AppConfig{}, err
	}

	var cfg domain.AppConfig
	if err := json.Unmarshal(row.Document, &cfg); err != nil {
		return domain.AppConfig{}, err
	}
	cfg.Normalize()
	return cfg, nil
}

func (r *SettingsRepo) Save(ctx context.Context, cfg domain.AppConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	row := settingsRow{
		ID:        settingsRowID,
		Document:  doc,
		UpdatedAt: time.Now().UTC(),
	}
	_, err = r.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("document = EXCLUDED.document").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return err
	}

	return r.notifier.Publish(feed.SubjectSettingsChanged)
}

// Subscribe delivers the current document immediately, then reloads and
// redelivers after every change notification.
func (r *SettingsRepo) Subscribe(ctx context.Context, deliver func(domain.AppConfig)) (store.Unsubscribe, error) {
	cfg, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	deliver(cfg)

	unsub, err := r.notifier.Subscribe(feed.SubjectSettingsChanged, func() {
		cfg, err := r.Load(context.Background())
		if err != nil {
			r.log.Error("settings reload failed", slog.Any("err", err))
			return
		}
		deliver(cfg)
	})
	if err != nil {
		return nil, err
	}
	return store.Unsubscribe(unsub), nil
}
