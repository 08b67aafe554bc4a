package recognition

import (
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// Prediction is the classifier's answer for one sample. Score is an LBPH
// distance: lower means more similar, and it is not a probability.
type Prediction struct {
	Label int
	Score float64
}

// Classifier wraps a trained LBPH face recognizer. It is immutable after
// training: a retrain produces a whole new Classifier rather than updating
// the live one in place.
type Classifier struct {
	recognizer *contrib.LBPHFaceRecognizer
}

// TrainClassifier trains a fresh LBPH model from scratch on the full sample
// set. samples must be canonical grayscale crops; labels runs parallel to it.
func TrainClassifier(samples []gocv.Mat, labels []int) (*Classifier, error) {
	if len(samples) == 0 {
		return nil, ErrNoTrainableData
	}
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("sample/label count mismatch: %d vs %d", len(samples), len(labels))
	}

	recognizer := contrib.NewLBPHFaceRecognizer()
	recognizer.Train(samples, labels)
	return &Classifier{recognizer: recognizer}, nil
}

// LoadClassifier restores a persisted model. Missing or unreadable state is
// reported as an error so the caller can fall back to a full retrain.
func LoadClassifier(path string) (c *Classifier, err error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("classifier state not accessible at '%s': %w", path, statErr)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("classifier state at '%s' is empty", path)
	}

	// OpenCV read failures surface as panics from the cgo layer
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("classifier state at '%s' is corrupt: %v", path, r)
		}
	}()

	recognizer := contrib.NewLBPHFaceRecognizer()
	recognizer.LoadFile(path)
	return &Classifier{recognizer: recognizer}, nil
}

// Predict returns the closest trained label and its distance for one
// canonical sample.
func (c *Classifier) Predict(sample gocv.Mat) Prediction {
	resp := c.recognizer.PredictExtendedResponse(sample)
	return Prediction{
		Label: int(resp.Label),
		Score: float64(resp.Confidence),
	}
}

// Save persists the model to path atomically: the model is written to a
// temp file in the same directory and renamed into place, so a failed or
// aborted write never clobbers the previous generation.
func (c *Classifier) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.yml")
	if err != nil {
		return fmt.Errorf("failed to create temp model file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	c.recognizer.SaveFile(tmpPath)

	if info, err := os.Stat(tmpPath); err != nil || info.Size() == 0 {
		os.Remove(tmpPath)
		return fmt.Errorf("classifier write produced no data at '%s'", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace classifier state '%s': %w", path, err)
	}
	return nil
}
