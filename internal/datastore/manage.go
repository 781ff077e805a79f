package datastore

import (
	"log"
	"os"
	"time"

	"github.com/insectos/insectos-go/internal/errors"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow and logged at warn level.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// migrationTables lists every table of the observation schema with the name
// its model declares. Labels in migration logs must match the real tables.
var migrationTables = []struct {
	model any
	name  string
}{
	{&Observation{}, "observaciones"},
	{&ObservationPhoto{}, "observacion_fotos"},
	{&Condition{}, "condicion_observacion"},
	{&State{}, "estado_insecto"},
	{&Stage{}, "etapa_insecto"},
	{&Sex{}, "sexo_insecto"},
}

// performAutoMigration migrates all tables of the observation schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType string) error {
	migrationStart := time.Now()

	for _, table := range migrationTables {
		if err := db.AutoMigrate(table.model); err != nil {
			enhancedErr := errors.Newf("failed to migrate table %s: %w", table.name, err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("db_type", dbType).
				Context("table", table.name).
				Build()
			logger.Error("Table migration failed",
				"table", table.name,
				"error", enhancedErr)
			return enhancedErr
		}
	}

	if debug {
		logger.Debug("Database migration completed",
			"db_type", dbType,
			"tables_migrated", len(migrationTables),
			"duration_ms", time.Since(migrationStart).Milliseconds())
	}

	return nil
}
