package models

import "time"

// Prediction sources.
const (
	SourceImage  = "image"
	SourceCamera = "camera"
	SourceBatch  = "batch"
)

// Prediction represents a stored classification result.
type Prediction struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	Source          string    `json:"source"`
	Label           string    `json:"label"`
	TranslatedLabel string    `json:"translated_label"`
	Confidence      float64   `json:"confidence"`
	ImagePath       string    `json:"image_path,omitempty"`
	SnapshotPath    string    `json:"snapshot_path,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// PredictionFilter contains filtering options for querying predictions.
type PredictionFilter struct {
	Source        string
	Label         string
	SessionID     string
	StartDate     time.Time
	EndDate       time.Time
	MinConfidence float64
	Limit         int
	Offset        int
}

// PredictionStats contains statistics about stored predictions.
type PredictionStats struct {
	TotalPredictions  int                `json:"total_predictions"`
	PerSource         map[string]int     `json:"per_source"`
	LabelCounts       map[string]int     `json:"label_counts"`
	AverageConfidence map[string]float64 `json:"average_confidence"`
}
