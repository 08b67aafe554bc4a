package recognition

import (
	"fmt"
	"image"
	"log"
	"os"

	"gocv.io/x/gocv"
)

const (
	detectScaleFactor  = 1.1
	detectMinNeighbors = 5
	detectMinFaceSize  = 30
)

// CascadeDetector locates face regions in a grayscale image using a fixed,
// pre-trained Haar cascade. It is not learned from the training corpus.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
}

// NewCascadeDetector loads the cascade XML from cascadePath. A load failure
// is fatal to detection-dependent operations and is distinct from the normal
// zero-faces outcome, so it is reported as an error here.
func NewCascadeDetector(cascadePath string) (*CascadeDetector, error) {
	if _, err := os.Stat(cascadePath); err != nil {
		return nil, fmt.Errorf("cascade file not accessible at %s: %w", cascadePath, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load Haar cascade from %s", cascadePath)
	}

	log.Printf("detector: loaded Haar cascade from %s", cascadePath)
	return &CascadeDetector{classifier: classifier}, nil
}

func (d *CascadeDetector) Close() {
	d.classifier.Close()
}

// Detect returns zero or more face bounding boxes found in gray. The input
// must be a single-channel grayscale Mat.
func (d *CascadeDetector) Detect(gray gocv.Mat) []image.Rectangle {
	if gray.Empty() {
		return nil
	}
	return d.classifier.DetectMultiScaleWithParams(
		gray,
		detectScaleFactor,
		detectMinNeighbors,
		0,
		image.Pt(detectMinFaceSize, detectMinFaceSize),
		image.Pt(0, 0),
	)
}
