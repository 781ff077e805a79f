// Package datastore implements the relational store for insect observations.
// Records cross the package boundary as storage-shape maps so that fields the
// schema does not know about are rejected early and partial updates can be
// expressed directly.
package datastore

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/insectos/insectos-go/internal/conf"
	"github.com/insectos/insectos-go/internal/logging"
	"github.com/insectos/insectos-go/internal/observability"
	"gorm.io/gorm"
)

// Package-level logger for datastore operations
var (
	logger      *slog.Logger
	levelVar    = new(slog.LevelVar)
	closeLogger func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "datastore.log")
	levelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "datastore", levelVar)
	if err != nil {
		log.Printf("Failed to initialize datastore file logger: %v", err)
		logger = logging.ForService("datastore")
		closeLogger = func() error { return nil }
	}
}

// Interface defines the operations the rest of the application uses to
// persist and retrieve observations.
type Interface interface {
	Open() error
	Close() error

	CreateObservation(ctx context.Context, record map[string]any) (map[string]any, error)
	GetObservation(ctx context.Context, id string) (map[string]any, error)
	ListObservationsByUser(ctx context.Context, userID string) ([]map[string]any, error)
	UpdateObservation(ctx context.Context, id string, fields map[string]any) (map[string]any, error)
	DeleteObservation(ctx context.Context, id string) error

	AddPhoto(ctx context.Context, observationID string, photo map[string]any) (map[string]any, error)
	GetObservationPhotos(ctx context.Context, observationID string) ([]map[string]any, error)
	UpdatePhoto(ctx context.Context, photoID string, fields map[string]any) (map[string]any, error)
	DeletePhoto(ctx context.Context, photoID string) error

	GetCatalog(ctx context.Context, name string) ([]map[string]any, error)
}

// DataStore implements the repository operations shared by all supported
// database backends.
type DataStore struct {
	DB      *gorm.DB
	Metrics *observability.DatastoreMetrics
}

// New creates the appropriate store backend based on the output settings.
// SQLite wins when both backends are enabled.
func New(settings *conf.Settings, metrics *observability.DatastoreMetrics) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{Metrics: metrics},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{Metrics: metrics},
			Settings:  settings,
		}
	default:
		return nil
	}
}
