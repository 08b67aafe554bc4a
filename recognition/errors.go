package recognition

import "errors"

// ErrDetectorUnavailable is returned when the Haar cascade could not be
// loaded at startup. Zero detections in an image is not an error.
var ErrDetectorUnavailable = errors.New("face detector unavailable")

// ErrInvalidImage is returned when submitted bytes do not decode as an image.
var ErrInvalidImage = errors.New("invalid image data")

// ErrNoTrainableData is returned when a training run finds no usable samples.
// The previously persisted classifier and registry are left untouched.
var ErrNoTrainableData = errors.New("no usable training samples")

// ErrClassifierUnavailable is returned when no trained snapshot exists yet.
var ErrClassifierUnavailable = errors.New("no trained classifier available")

// ErrIdentityNotFound is returned by Registry.Lookup for unassigned labels.
var ErrIdentityNotFound = errors.New("identity not found")
