package ai

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"

	"plantdoctor/internal/logger"
)

// InputSize is the square input edge the classifier was trained with.
const InputSize = 224

// ErrEmptyImage is returned when there is nothing to classify.
var ErrEmptyImage = errors.New("image is empty")

// Prediction is the most probable label for an image.
type Prediction struct {
	Index      int
	Label      string
	Confidence float64
}

// ColorOrder selects the channel order fed to the model.
type ColorOrder int

const (
	// SwapToRGB converts the BGR image to RGB first. Used for image files.
	SwapToRGB ColorOrder = iota
	// KeepBGR feeds camera frames in the order the camera delivers them.
	KeepBGR
)

func (o ColorOrder) String() string {
	if o == KeepBGR {
		return "bgr"
	}
	return "rgb"
}

// Classifier maps a BGR image to a probability distribution over disease labels.
type Classifier interface {
	Classify(img gocv.Mat, order ColorOrder) (Prediction, error)
	Labels() []string
	Close() error
}

// New picks the backend from the model file extension.
func New(modelPath string, labels []string, log *logger.Logger) (Classifier, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	switch strings.ToLower(filepath.Ext(modelPath)) {
	case ".tflite":
		return NewTFLiteClassifier(modelPath, labels, log)
	default:
		return NewDNNClassifier(modelPath, labels, log)
	}
}

// LoadLabels reads newline-delimited labels; line i names output i.
func LoadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}

	// Trailing blank lines are not labels
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// Preprocess resizes a BGR image to the model input, applies order and scales
// intensities to [0,1]. The caller owns the returned CV_32FC3 Mat.
func Preprocess(img gocv.Mat, order ColorOrder) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), ErrEmptyImage
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(InputSize, InputSize), 0, 0, gocv.InterpolationLinear)

	if order == SwapToRGB {
		gocv.CvtColor(resized, &resized, gocv.ColorBGRToRGB)
	}

	normalized := gocv.NewMat()
	resized.ConvertToWithParams(&normalized, gocv.MatTypeCV32FC3, 1.0/255.0, 0)
	return normalized, nil
}

// labelSet resolves output indices to labels and warns once on a size mismatch.
type labelSet struct {
	labels   []string
	log      *logger.Logger
	warnOnce sync.Once
}

func (l *labelSet) predict(scores []float32) (Prediction, error) {
	if len(scores) == 0 {
		return Prediction{}, errors.New("classifier returned no scores")
	}
	if len(scores) != len(l.labels) {
		l.warnOnce.Do(func() {
			l.log.Warning("Classifier outputs %d classes but %d labels are loaded", len(scores), len(l.labels))
		})
	}

	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = float64(s)
	}
	if !isDistribution(probs) {
		softmax(probs)
	}
	idx := floats.MaxIdx(probs)

	return Prediction{
		Index:      idx,
		Label:      l.label(idx),
		Confidence: probs[idx],
	}, nil
}

// isDistribution reports whether v already looks like softmax output.
func isDistribution(v []float64) bool {
	if floats.Min(v) < 0 {
		return false
	}
	return math.Abs(floats.Sum(v)-1) < 1e-3
}

// softmax turns raw logits into probabilities in place.
func softmax(v []float64) {
	m := floats.Max(v)
	for i := range v {
		v[i] = math.Exp(v[i] - m)
	}
	floats.Scale(1/floats.Sum(v), v)
}

func (l *labelSet) label(idx int) string {
	if idx >= 0 && idx < len(l.labels) {
		return l.labels[idx]
	}
	return fmt.Sprintf("unknown_%d", idx)
}
