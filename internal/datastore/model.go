package datastore

import (
	"time"
)

// Observation represents a stored insect observation. Column names follow the
// Spanish storage schema, the English wire shape is produced by the
// observation mapper on the way in and out.
type Observation struct {
	ID               string    `gorm:"column:id;primaryKey"`
	UserID           string    `gorm:"column:user_id;index:idx_observaciones_user"`
	InaturalistID    *int      `gorm:"column:inaturalist_id"`
	NombreCientifico string    `gorm:"column:nombre_cientifico"`
	NombreComun      string    `gorm:"column:nombre_comun"`
	FechaObservacion string    `gorm:"column:fecha_observacion"`
	Ubicacion        string    `gorm:"column:ubicacion"`
	CondicionID      *int      `gorm:"column:condicion_id"`
	EstadoID         *int      `gorm:"column:estado_id"`
	EtapaID          *int      `gorm:"column:etapa_id"`
	SexoID           *int      `gorm:"column:sexo_id"`
	Descripcion      string    `gorm:"column:descripcion"`
	CreatedAt        time.Time `gorm:"column:created_at"`

	Fotos []ObservationPhoto `gorm:"foreignKey:ObservacionID"`
}

// TableName returns the storage table name for observations.
func (Observation) TableName() string {
	return "observaciones"
}

// ObservationPhoto represents a photo attached to an observation. Orden is
// 1-based within an observation.
type ObservationPhoto struct {
	ID            string    `gorm:"column:id;primaryKey"`
	ObservacionID string    `gorm:"column:observacion_id;index:idx_fotos_observacion"`
	URLFoto       string    `gorm:"column:url_foto"`
	Orden         int       `gorm:"column:orden"`
	Descripcion   string    `gorm:"column:descripcion"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName returns the storage table name for observation photos.
func (ObservationPhoto) TableName() string {
	return "observacion_fotos"
}

// Condition is a catalog entry describing the weather condition during an
// observation.
type Condition struct {
	ID     int    `gorm:"column:id;primaryKey"`
	Nombre string `gorm:"column:nombre"`
}

func (Condition) TableName() string { return "condicion_observacion" }

// State is a catalog entry describing the state of the observed specimen.
type State struct {
	ID     int    `gorm:"column:id;primaryKey"`
	Nombre string `gorm:"column:nombre"`
}

func (State) TableName() string { return "estado_insecto" }

// Stage is a catalog entry describing the life stage of the specimen.
type Stage struct {
	ID     int    `gorm:"column:id;primaryKey"`
	Nombre string `gorm:"column:nombre"`
}

func (Stage) TableName() string { return "etapa_insecto" }

// Sex is a catalog entry describing the sex of the specimen.
type Sex struct {
	ID     int    `gorm:"column:id;primaryKey"`
	Nombre string `gorm:"column:nombre"`
}

func (Sex) TableName() string { return "sexo_insecto" }
