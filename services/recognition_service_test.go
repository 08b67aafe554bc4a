package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendancebackend/attendance"
	"github.com/attendly/attendancebackend/config"
	"github.com/attendly/attendancebackend/corpus"
	"github.com/attendly/attendancebackend/recognition"
)

func newTestService(t *testing.T) *RecognitionService {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{
		DataDirectory:        dir,
		CorpusPath:           filepath.Join(dir, "corpus"),
		ModelPath:            filepath.Join(dir, "model.yml"),
		RegistryPath:         filepath.Join(dir, "labels.json"),
		RecognitionThreshold: 80,
		SampleSize:           100,
		Timezone:             time.UTC,
	}
	store, err := corpus.NewStore(cfg.CorpusPath)
	require.NoError(t, err)

	csvLog := attendance.NewCSVLog(filepath.Join(dir, "attendance.csv"))
	ledger := attendance.NewLedger(csvLog, nil, 10*time.Second, time.UTC)

	return NewRecognitionService(cfg, nil, store, ledger)
}

func snapshotWithRegistry(gen uint64, names ...string) *recognition.Snapshot {
	registry := recognition.NewRegistry()
	for _, name := range names {
		registry.ResolveOrCreate(name, "1")
	}
	registry.Generation = gen
	return &recognition.Snapshot{Registry: registry, Generation: gen}
}

func TestTrainWithoutDetector(t *testing.T) {
	service := newTestService(t)

	_, err := service.Train()
	assert.ErrorIs(t, err, recognition.ErrDetectorUnavailable)
}

func TestScanWithoutDetector(t *testing.T) {
	service := newTestService(t)

	_, err := service.Scan([]byte("irrelevant"))
	assert.ErrorIs(t, err, recognition.ErrDetectorUnavailable)
}

func TestRegistrySizeWithoutSnapshot(t *testing.T) {
	service := newTestService(t)
	assert.Equal(t, 0, service.RegistrySize())
	assert.False(t, service.DetectorReady())
}

func TestPublishSnapshotSwapsAtomically(t *testing.T) {
	service := newTestService(t)
	service.publishSnapshot(snapshotWithRegistry(1, "Jane Doe"))

	// readers must only ever see a snapshot whose registry generation
	// matches the snapshot generation, never a half-updated pair
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for gen := uint64(2); gen < 50; gen++ {
			service.publishSnapshot(snapshotWithRegistry(gen, "Jane Doe", "John Smith"))
		}
		close(stop)
	}()

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := service.currentSnapshot()
				if snap == nil {
					continue
				}
				if snap.Generation != snap.Registry.Generation {
					t.Errorf("observed mismatched snapshot: gen %d vs registry gen %d", snap.Generation, snap.Registry.Generation)
					return
				}
			}
		}()
	}

	wg.Wait()
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestResolveOutcomeScoreAtThresholdIsUnknown(t *testing.T) {
	service := newTestService(t) // threshold 80

	registry := recognition.NewRegistry()
	label := registry.ResolveOrCreate("Jane Doe", "42")

	// the score is a distance, so a known label at or above the threshold
	// still reports Unknown and marks nothing
	outcome := service.resolveOutcome(registry, recognition.Prediction{Label: label, Score: 80})
	assert.False(t, outcome.Recognized)
	assert.False(t, outcome.AttendanceMarked)
	assert.Empty(t, outcome.Name)
	assert.Equal(t, 80.0, outcome.Score)
}

func TestResolveOutcomeUnknownLabelIsUnknown(t *testing.T) {
	service := newTestService(t)

	outcome := service.resolveOutcome(recognition.NewRegistry(), recognition.Prediction{Label: 3, Score: 12})
	assert.False(t, outcome.Recognized)
	assert.False(t, outcome.AttendanceMarked)
	assert.Equal(t, 12.0, outcome.Score)
}

func TestResolveOutcomeRecognizedMarksAttendanceOnce(t *testing.T) {
	service := newTestService(t)

	registry := recognition.NewRegistry()
	label := registry.ResolveOrCreate("Jane Doe", "42")

	first := service.resolveOutcome(registry, recognition.Prediction{Label: label, Score: 35.5})
	assert.True(t, first.Recognized)
	assert.Equal(t, "Jane Doe", first.Name)
	assert.Equal(t, "42", first.ExternalID)
	assert.True(t, first.AttendanceMarked)

	// inside the dedup window the identity stays recognized but is not
	// re-marked
	second := service.resolveOutcome(registry, recognition.Prediction{Label: label, Score: 35.5})
	assert.True(t, second.Recognized)
	assert.False(t, second.AttendanceMarked)
}

// detectorForTest loads the cascade from HAARCASCADE_PATH, skipping the test
// when no cascade file is available on this machine.
func detectorForTest(t *testing.T) *recognition.CascadeDetector {
	t.Helper()
	path := os.Getenv("HAARCASCADE_PATH")
	if path == "" {
		t.Skip("HAARCASCADE_PATH not set; skipping vision pipeline test")
	}
	detector, err := recognition.NewCascadeDetector(path)
	if err != nil {
		t.Skipf("cascade not loadable at %s: %v", path, err)
	}
	return detector
}

func flatJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestTrainSkipsImagesWithoutExactlyOneFace(t *testing.T) {
	service := newTestService(t)
	service.detector = detectorForTest(t)
	defer service.detector.Close()

	// a flat gray image detects zero faces, violating the exactly-one-face
	// rule, so the only corpus image is skipped and nothing is trainable
	groupDir := filepath.Join(service.cfg.CorpusPath, "Jane-Doe_42")
	require.NoError(t, os.MkdirAll(groupDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(groupDir, "flat.jpg"), flatJPEG(t), 0644))

	_, err := service.Train()
	assert.ErrorIs(t, err, recognition.ErrNoTrainableData)

	// a failed run leaves no persisted state and no published snapshot
	_, statErr := os.Stat(service.cfg.ModelPath)
	assert.True(t, os.IsNotExist(statErr))
	assert.Nil(t, service.currentSnapshot())
}

func TestScanWithDetectorButNoModel(t *testing.T) {
	service := newTestService(t)
	service.detector = detectorForTest(t)
	defer service.detector.Close()

	_, err := service.Scan(flatJPEG(t))
	assert.ErrorIs(t, err, recognition.ErrClassifierUnavailable)
}

func TestRegisterSampleRejectsGarbage(t *testing.T) {
	service := newTestService(t)

	_, err := service.RegisterSample("Jane Doe", "42", []byte("not an image"))
	assert.ErrorIs(t, err, recognition.ErrInvalidImage)
}

func TestRegisterSampleStoresUnderGroup(t *testing.T) {
	service := newTestService(t)

	path, err := service.RegisterSample("Jane Doe", "42", testJPEG(t))
	require.NoError(t, err)
	assert.Contains(t, path, "Jane-Doe_42")
}
