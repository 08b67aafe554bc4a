package services

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"gocv.io/x/gocv"

	"github.com/attendly/attendancebackend/attendance"
	"github.com/attendly/attendancebackend/config"
	"github.com/attendly/attendancebackend/corpus"
	"github.com/attendly/attendancebackend/recognition"
)

// TrainSummary reports the outcome of one training run.
type TrainSummary struct {
	SampleCount   int    `json:"sample_count"`
	PersonCount   int    `json:"person_count"`
	SkippedImages int    `json:"skipped_images"`
	Generation    uint64 `json:"generation"`
}

// FaceOutcome is the classification of one detected face in a scanned image.
type FaceOutcome struct {
	Recognized       bool    `json:"recognized"`
	Name             string  `json:"name,omitempty"`
	ExternalID       string  `json:"external_id,omitempty"`
	Score            float64 `json:"score"`
	AttendanceMarked bool    `json:"attendance_marked"`
}

// ScanResult holds the per-face outcomes for a scanned image. FaceFound is
// false when detection ran fine but found nothing; that is a normal outcome,
// not an error.
type ScanResult struct {
	FaceFound bool          `json:"face_found"`
	Faces     []FaceOutcome `json:"faces,omitempty"`
}

// RecognitionService owns the live classifier/registry snapshot and runs the
// training and recognition pipelines against it. Scans take a read lock only
// long enough to copy the snapshot pointer; a retrain builds a new snapshot
// entirely off-lock and publishes it atomically, so concurrent scans always
// observe either the fully-old or fully-new pair.
type RecognitionService struct {
	cfg      config.Config
	detector *recognition.CascadeDetector // nil when startup detection init failed
	corpus   *corpus.Store
	ledger   *attendance.Ledger

	mu       sync.RWMutex
	snapshot *recognition.Snapshot
}

func NewRecognitionService(cfg config.Config, detector *recognition.CascadeDetector, corpusStore *corpus.Store, ledger *attendance.Ledger) *RecognitionService {
	return &RecognitionService{
		cfg:      cfg,
		detector: detector,
		corpus:   corpusStore,
		ledger:   ledger,
	}
}

func (s *RecognitionService) currentSnapshot() *recognition.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *RecognitionService) publishSnapshot(snap *recognition.Snapshot) {
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
}

// LoadOrTrain restores the persisted classifier/registry pair, falling back
// to a full retrain when the pair is missing, corrupt, or mismatched. An
// empty corpus leaves the service degraded but alive.
func (s *RecognitionService) LoadOrTrain() error {
	snap, err := recognition.LoadSnapshot(s.cfg.ModelPath, s.cfg.RegistryPath)
	if err == nil {
		s.publishSnapshot(snap)
		return nil
	}
	log.Printf("service: could not load persisted model state: %v. Retraining...", err)

	_, trainErr := s.Train()
	if trainErr != nil {
		if errors.Is(trainErr, recognition.ErrNoTrainableData) {
			log.Printf("service: no trainable data yet; running without a classifier until registration")
			return nil
		}
		return trainErr
	}
	return nil
}

// RegisterSample stores a new sample image for an identity in the corpus.
// The caller is expected to trigger a retrain afterwards so the new face
// takes effect.
func (s *RecognitionService) RegisterSample(name, externalID string, imageData []byte) (string, error) {
	path, err := s.corpus.SaveSample(name, externalID, imageData)
	if err != nil {
		if errors.Is(err, corpus.ErrUndecodableImage) {
			return "", fmt.Errorf("%w: %v", recognition.ErrInvalidImage, err)
		}
		return "", err
	}
	return path, nil
}

// Train runs the full training pipeline: enumerate corpus groups in a
// deterministic order, resolve labels against a clone of the live registry,
// extract exactly-one-face samples, train a fresh classifier from scratch,
// persist the new generation, and publish it. A failed run never touches the
// live or persisted state.
func (s *RecognitionService) Train() (TrainSummary, error) {
	if s.detector == nil {
		return TrainSummary{}, recognition.ErrDetectorUnavailable
	}

	groups, err := s.corpus.ListGroups()
	if err != nil {
		return TrainSummary{}, err
	}

	var registry *recognition.Registry
	var generation uint64
	if current := s.currentSnapshot(); current != nil {
		registry = current.Registry.Clone()
		generation = current.Generation + 1
	} else {
		registry = recognition.NewRegistry()
		generation = 1
	}

	var samples []gocv.Mat
	var labels []int
	defer func() {
		for _, sample := range samples {
			sample.Close()
		}
	}()

	skipped := 0
	persons := make(map[int]bool)

	for _, group := range groups {
		label := registry.ResolveOrCreate(group.Name, group.ExternalID)
		log.Printf("trainer: processing %s (%s) -> label %d", group.Name, group.ExternalID, label)

		for _, imagePath := range group.ImagePaths {
			sample, err := s.extractTrainingSample(imagePath)
			if err != nil {
				log.Printf("trainer: skipping '%s': %v", imagePath, err)
				skipped++
				continue
			}
			samples = append(samples, sample)
			labels = append(labels, label)
			persons[label] = true
		}
	}

	if len(samples) == 0 {
		return TrainSummary{}, recognition.ErrNoTrainableData
	}

	log.Printf("trainer: training LBPH model with %d samples across %d persons...", len(samples), len(persons))
	classifier, err := recognition.TrainClassifier(samples, labels)
	if err != nil {
		return TrainSummary{}, err
	}

	snap := &recognition.Snapshot{
		Classifier: classifier,
		Registry:   registry,
		Generation: generation,
	}

	summary := TrainSummary{
		SampleCount:   len(samples),
		PersonCount:   len(persons),
		SkippedImages: skipped,
		Generation:    generation,
	}

	// persistence failure loses durability for this generation but the new
	// model is still published in memory
	persistErr := recognition.SaveSnapshot(snap, s.cfg.ModelPath, s.cfg.RegistryPath)
	s.publishSnapshot(snap)

	if persistErr != nil {
		log.Printf("trainer: %v", persistErr)
		return summary, persistErr
	}

	log.Printf("trainer: training complete (generation %d)", generation)
	return summary, nil
}

// extractTrainingSample decodes one corpus image and returns its canonical
// face crop. Images with zero or multiple detected faces are ambiguous and
// rejected.
func (s *RecognitionService) extractTrainingSample(imagePath string) (gocv.Mat, error) {
	gray, err := recognition.ReadGrayFile(imagePath)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer gray.Close()

	faces := s.detector.Detect(gray)
	if len(faces) != 1 {
		return gocv.Mat{}, fmt.Errorf("found %d faces (expected 1)", len(faces))
	}

	return recognition.CropSample(gray, faces[0], s.cfg.SampleSize)
}

// Scan runs the recognition pipeline on an uploaded image and marks
// attendance for each recognized identity. Every detected face is classified
// independently and all outcomes are returned.
func (s *RecognitionService) Scan(imageData []byte) (ScanResult, error) {
	if s.detector == nil {
		return ScanResult{}, recognition.ErrDetectorUnavailable
	}

	snap := s.currentSnapshot()
	if snap == nil {
		return ScanResult{}, recognition.ErrClassifierUnavailable
	}

	frame, err := gocv.IMDecode(imageData, gocv.IMReadColor)
	if err != nil {
		return ScanResult{}, recognition.ErrInvalidImage
	}
	if frame.Empty() {
		frame.Close()
		return ScanResult{}, recognition.ErrInvalidImage
	}
	defer frame.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	faces := s.detector.Detect(gray)
	if len(faces) == 0 {
		return ScanResult{FaceFound: false}, nil
	}

	result := ScanResult{FaceFound: true}
	for _, rect := range faces {
		sample, err := recognition.CropSample(gray, rect, s.cfg.SampleSize)
		if err != nil {
			log.Printf("scanner: skipping face region %v: %v", rect, err)
			continue
		}

		prediction := snap.Classifier.Predict(sample)
		sample.Close()

		result.Faces = append(result.Faces, s.resolveOutcome(snap.Registry, prediction))
	}

	return result, nil
}

// resolveOutcome turns a classifier prediction into a per-face outcome. The
// score is an LBPH distance, so only a score strictly below the threshold
// counts as a match; a match whose label the registry does not know stays
// Unknown. Recognized identities are marked in the attendance ledger.
func (s *RecognitionService) resolveOutcome(registry *recognition.Registry, prediction recognition.Prediction) FaceOutcome {
	outcome := FaceOutcome{Score: prediction.Score}
	if prediction.Score >= s.cfg.RecognitionThreshold {
		return outcome
	}
	identity, err := registry.Lookup(prediction.Label)
	if err != nil {
		return outcome
	}

	outcome.Recognized = true
	outcome.Name = identity.Name
	outcome.ExternalID = identity.ExternalID

	marked, markErr := s.ledger.Mark(identity.Name, identity.ExternalID)
	if markErr != nil {
		log.Printf("scanner: attendance write failed for %s (%s): %v", identity.Name, identity.ExternalID, markErr)
	}
	outcome.AttendanceMarked = marked
	return outcome
}

// RegistrySize reports how many identities the live snapshot knows about.
func (s *RecognitionService) RegistrySize() int {
	snap := s.currentSnapshot()
	if snap == nil {
		return 0
	}
	return snap.Registry.Len()
}

// DetectorReady reports whether the face detector initialized at startup.
func (s *RecognitionService) DetectorReady() bool {
	return s.detector != nil
}

// Close releases the detector. Published snapshots are left for the OS to
// reclaim at exit since concurrent scans may still hold them.
func (s *RecognitionService) Close() {
	if s.detector != nil {
		s.detector.Close()
	}
}
