package repository

import (
	"plantdoctor/internal/models"
)

// PredictionRepository defines the interface for prediction history operations.
type PredictionRepository interface {
	// Create operations
	Insert(p *models.Prediction) (int64, error)

	// Read operations
	GetByID(id int64) (*models.Prediction, error)
	GetAll(filter *models.PredictionFilter) ([]models.Prediction, error)
	GetTotalCount(filter *models.PredictionFilter) (int, error)
	GetLabels() ([]string, error)
	GetStats() (*models.PredictionStats, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}
