package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"firebase.google.com/go/v4/auth"
	"golang.org/x/text/language"

	"github.com/GregMSThompson/dashboard-backend/internal/charting"
	"github.com/GregMSThompson/dashboard-backend/internal/config"
	"github.com/GregMSThompson/dashboard-backend/internal/models"
	"github.com/GregMSThompson/dashboard-backend/internal/store"
	"github.com/GregMSThompson/dashboard-backend/internal/store/sqlite"
	"github.com/GregMSThompson/dashboard-backend/pkg/logger"
)

// DashboardStore is implemented by both store backends.
type DashboardStore interface {
	Create(ctx context.Context, d *models.Dashboard) error
	Get(ctx context.Context, id string) (*models.Dashboard, error)
	List(ctx context.Context) ([]models.DashboardSummary, error)
	Update(ctx context.Context, id string, patch models.DashboardPatch, expectedVersion int64) (*models.Dashboard, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

type FieldStore interface {
	ListFields(ctx context.Context) ([]models.Field, error)
}

type Bootstrap struct {
	Log        *slog.Logger
	Firestore  *firestore.Client
	Firebase   *auth.Client
	Dashboards DashboardStore
	Fields     FieldStore
	Renderer   *charting.Renderer

	closers []func() error
}

func Run(cfg *config.Config) (*Bootstrap, error) {
	var err error
	applicationCtx := context.Background()
	bs := new(Bootstrap)

	out, closeLog := logger.Output(logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	bs.closers = append(bs.closers, closeLog)
	bs.Log = logger.New(cfg.LogLevel, logger.CloudRunHandlerTo(out))
	slog.SetDefault(bs.Log)

	locale, err := language.Parse(cfg.NumberLocale)
	if err != nil {
		return bs, fmt.Errorf("parse NUMBERLOCALE %q: %w", cfg.NumberLocale, err)
	}
	bs.Renderer = charting.NewRenderer(locale)

	switch cfg.StoreBackend {
	case config.StoreSQLite:
		db, err := InitSQLite(cfg.SQLitePath)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, db.Close)
		bs.Dashboards, bs.Fields = db, db
	default:
		bs.Firestore, err = InitFirestore(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, err
		}
		bs.closers = append(bs.closers, bs.Firestore.Close)
		bs.Dashboards = store.NewDashboardStore(bs.Firestore)
		bs.Fields = store.NewFieldStore(bs.Firestore)
	}

	if cfg.AuthMode == config.AuthFirebase {
		bs.Firebase, err = InitFirebase(applicationCtx, cfg.ProjectID)
		if err != nil {
			return bs, err
		}
	} else {
		bs.Log.Warn("authentication disabled", "auth_mode", cfg.AuthMode)
	}

	bs.Log.Info("bootstrap complete",
		"store", cfg.StoreBackend,
		"auth_mode", cfg.AuthMode,
		"locale", locale.String(),
	)
	return bs, nil
}

// Close releases clients in reverse order of creation.
func (bs *Bootstrap) Close() error {
	var errs []error
	for i := len(bs.closers) - 1; i >= 0; i-- {
		if err := bs.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func InitSQLite(path string) (*sqlite.Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}
