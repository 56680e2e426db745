//go:build !tflite
// +build !tflite

package ai

import (
	"errors"

	"plantdoctor/internal/logger"
)

// NewTFLiteClassifier returns an error when built without the tflite tag.
func NewTFLiteClassifier(string, []string, *logger.Logger) (Classifier, error) {
	return nil, errors.New("tflite build tag is not enabled")
}
