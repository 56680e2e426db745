//go:build tflite
// +build tflite

package ai

import (
	"fmt"
	"runtime"

	"github.com/mattn/go-tflite"
	"gocv.io/x/gocv"

	"plantdoctor/internal/logger"
)

// TFLiteClassifier runs a TensorFlow Lite model with an NHWC float32 input.
type TFLiteClassifier struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	labels      *labelSet
	logger      *logger.Logger
}

// NewTFLiteClassifier loads the model and allocates its tensors.
func NewTFLiteClassifier(modelPath string, labels []string, log *logger.Logger) (Classifier, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to load tflite model %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())
	options.SetErrorReporter(func(msg string, _ interface{}) {
		log.Error("tflite: %s", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to create tflite interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to allocate tflite tensors: %v", status)
	}

	input := interpreter.GetInputTensor(0)
	if input.NumDims() != 4 || input.Dim(1) != InputSize || input.Dim(2) != InputSize || input.Dim(3) != 3 {
		log.Warning("TFLite input shape is not 1x%dx%dx3", InputSize, InputSize)
	}

	log.Info("TFLite classifier loaded from %s (%d labels)", modelPath, len(labels))
	return &TFLiteClassifier{
		model:       model,
		options:     options,
		interpreter: interpreter,
		labels:      &labelSet{labels: labels, log: log},
		logger:      log,
	}, nil
}

// Classify returns the most probable label for a BGR image of any size.
func (c *TFLiteClassifier) Classify(img gocv.Mat, order ColorOrder) (Prediction, error) {
	prepared, err := Preprocess(img, order)
	defer prepared.Close()
	if err != nil {
		return Prediction{}, err
	}

	data, err := prepared.DataPtrFloat32()
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to read input buffer: %w", err)
	}

	input := c.interpreter.GetInputTensor(0)
	copy(input.Float32s(), data)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return Prediction{}, fmt.Errorf("tflite invoke failed: %v", status)
	}

	output := c.interpreter.GetOutputTensor(0)
	scores := append([]float32(nil), output.Float32s()...)
	return c.labels.predict(scores)
}

// Labels returns the label list in output order.
func (c *TFLiteClassifier) Labels() []string {
	return c.labels.labels
}

// Close releases the interpreter and model.
func (c *TFLiteClassifier) Close() error {
	c.interpreter.Delete()
	c.options.Delete()
	c.model.Delete()
	return nil
}
