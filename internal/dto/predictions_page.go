// PredictionsPage is a paginated response payload for the prediction history.
package dto

import "plantdoctor/internal/models"

type PredictionsPage struct {
	Predictions []models.Prediction `json:"predictions"`
	Length      int                 `json:"length"`
	TotalPages  int                 `json:"totalPages"`
	CurrentPage int                 `json:"currentPage"`
	Limit       int                 `json:"pageSize"`
}
