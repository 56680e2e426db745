package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"plantdoctor/internal/models"
)

// PredictionRepository implements repository.PredictionRepository for SQLite.
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository creates a new SQLite prediction repository.
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const predictionColumns = `id, session_id, source, label, translated_label, confidence, image_path, snapshot_path, created_at`

// Insert adds a prediction. A zero CreatedAt is set to the current time.
func (r *PredictionRepository) Insert(p *models.Prediction) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO predictions (session_id, source, label, translated_label, confidence, image_path, snapshot_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.SessionID, p.Source, p.Label, p.TranslatedLabel, p.Confidence, p.ImagePath, p.SnapshotPath, p.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prediction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read prediction id: %w", err)
	}
	p.ID = id
	return id, nil
}

// GetByID retrieves a prediction, or nil if it does not exist.
func (r *PredictionRepository) GetByID(id int64) (*models.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+predictionColumns+` FROM predictions WHERE id = ?`, id)
	p, err := scanPrediction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// GetAll retrieves predictions matching the filter, newest first.
func (r *PredictionRepository) GetAll(filter *models.PredictionFilter) ([]models.Prediction, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE 1=1` + where + ` ORDER BY created_at DESC, id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, *p)
	}

	return predictions, rows.Err()
}

// GetTotalCount returns the number of predictions matching the filter.
func (r *PredictionRepository) GetTotalCount(filter *models.PredictionFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildWhere(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM predictions WHERE 1=1`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return count, nil
}

// GetLabels returns the distinct predicted labels.
func (r *PredictionRepository) GetLabels() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT label FROM predictions ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// GetStats returns per-source counts and per-label counts and mean confidence.
func (r *PredictionRepository) GetStats() (*models.PredictionStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &models.PredictionStats{
		PerSource:         make(map[string]int),
		LabelCounts:       make(map[string]int),
		AverageConfidence: make(map[string]float64),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM predictions`).Scan(&stats.TotalPredictions); err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	sourceRows, err := r.db.Conn().Query(`SELECT source, COUNT(*) FROM predictions GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer sourceRows.Close()

	for sourceRows.Next() {
		var source string
		var count int
		if err := sourceRows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		stats.PerSource[source] = count
	}

	labelRows, err := r.db.Conn().Query(`
		SELECT label, COUNT(*) AS cnt, AVG(confidence)
		FROM predictions
		GROUP BY label
		ORDER BY cnt DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer labelRows.Close()

	for labelRows.Next() {
		var label string
		var count int
		var avg float64
		if err := labelRows.Scan(&label, &count, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan label stats: %w", err)
		}
		stats.LabelCounts[label] = count
		stats.AverageConfidence[label] = avg
	}

	return stats, nil
}

// Delete removes a prediction by its ID.
func (r *PredictionRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM predictions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete prediction: %w", err)
	}
	return nil
}

// DeleteAll removes every prediction.
func (r *PredictionRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM predictions`); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}
	return nil
}

func buildWhere(filter *models.PredictionFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	where := ""
	args := []interface{}{}

	if filter.Source != "" {
		where += " AND source = ?"
		args = append(args, filter.Source)
	}

	if filter.Label != "" {
		where += " AND label = ?"
		args = append(args, filter.Label)
	}

	if filter.SessionID != "" {
		where += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}

	if filter.MinConfidence > 0 {
		where += " AND confidence >= ?"
		args = append(args, filter.MinConfidence)
	}

	if !filter.StartDate.IsZero() {
		where += " AND DATE(created_at) >= DATE(?)"
		args = append(args, filter.StartDate.UTC().Format("2006-01-02"))
	}

	if !filter.EndDate.IsZero() {
		where += " AND DATE(created_at) <= DATE(?)"
		args = append(args, filter.EndDate.UTC().Format("2006-01-02"))
	}

	return where, args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPrediction(s scanner) (*models.Prediction, error) {
	var p models.Prediction
	if err := s.Scan(&p.ID, &p.SessionID, &p.Source, &p.Label, &p.TranslatedLabel, &p.Confidence, &p.ImagePath, &p.SnapshotPath, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
