package ai

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"plantdoctor/internal/logger"
)

// DNNClassifier runs an ONNX or TensorFlow graph through OpenCV's dnn module.
// The network must take an NCHW 1x3x224x224 input scaled to [0,1].
type DNNClassifier struct {
	net       gocv.Net
	modelPath string
	labels    *labelSet
	logger    *logger.Logger
}

// NewDNNClassifier loads the network once; it is reused for every frame.
func NewDNNClassifier(modelPath string, labels []string, log *logger.Logger) (*DNNClassifier, error) {
	c := &DNNClassifier{
		modelPath: modelPath,
		labels:    &labelSet{labels: labels, log: log},
		logger:    log,
	}

	if err := c.initializeNet(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DNNClassifier) initializeNet() error {
	net := gocv.ReadNet(c.modelPath, "")
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", c.modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	c.net = net
	c.logger.Info("Classifier network loaded from %s (%d labels)", c.modelPath, len(c.labels.labels))
	return nil
}

// Classify returns the most probable label for a BGR image of any size.
func (c *DNNClassifier) Classify(img gocv.Mat, order ColorOrder) (Prediction, error) {
	input, err := Preprocess(img, order)
	defer input.Close()
	if err != nil {
		return Prediction{}, err
	}

	// Preprocess already scaled and ordered channels
	blob := gocv.BlobFromImage(input, 1.0, image.Pt(InputSize, InputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	if output.Empty() {
		return Prediction{}, fmt.Errorf("network returned no output")
	}

	scores := make([]float32, output.Total())
	for i := range scores {
		scores[i] = output.GetFloatAt(0, i)
	}
	return c.labels.predict(scores)
}

// Labels returns the label list in output order.
func (c *DNNClassifier) Labels() []string {
	return c.labels.labels
}

// Close releases the network.
func (c *DNNClassifier) Close() error {
	if !c.net.Empty() {
		return c.net.Close()
	}
	return nil
}
