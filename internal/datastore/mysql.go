package datastore

import (
	"fmt"

	"github.com/insectos/insectos-go/internal/conf"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// MySQLStore implements Interface for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	mysqlConf := store.Settings.Output.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlConf.Username, mysqlConf.Password,
		mysqlConf.Host, mysqlConf.Port, mysqlConf.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		logger.Error("Failed to open MySQL database",
			"host", mysqlConf.Host,
			"port", mysqlConf.Port,
			"database", mysqlConf.Database,
			"error", err)
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "MySQL")
}

// Close releases the underlying MySQL connection pool.
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		logger.Error("Failed to retrieve generic DB object", "error", err)
		return err
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close MySQL database", "error", err)
		return err
	}
	return nil
}
