package recognition

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
)

// Snapshot is one immutable classifier/registry generation. Scans read a
// snapshot; a retrain publishes a brand new one and never mutates a
// published snapshot.
type Snapshot struct {
	Classifier *Classifier
	Registry   *Registry
	Generation uint64
}

// SaveSnapshot persists both halves of the pair: classifier state first, then
// the registry carrying the generation and a checksum of the model file as it
// landed on disk. The registry rename is the commit point; a crash between
// the two renames leaves a registry whose recorded checksum disagrees with
// the model file, which LoadSnapshot refuses.
func SaveSnapshot(s *Snapshot, modelPath, registryPath string) error {
	if err := s.Classifier.Save(modelPath); err != nil {
		return fmt.Errorf("failed to persist classifier state: %w", err)
	}
	checksum, err := fileChecksum(modelPath)
	if err != nil {
		return fmt.Errorf("failed to checksum classifier state: %w", err)
	}
	s.Registry.Generation = s.Generation
	s.Registry.ModelChecksum = checksum
	if err := s.Registry.Save(registryPath); err != nil {
		return fmt.Errorf("failed to persist registry: %w", err)
	}
	log.Printf("snapshot: persisted generation %d (%d identities)", s.Generation, s.Registry.Len())
	return nil
}

// LoadSnapshot restores a persisted classifier/registry pair. Missing files,
// corrupt state, or a registry whose recorded checksum does not match the
// model file on disk all fail the load; the caller is expected to fall back
// to a full retrain rather than serve a mixed pair.
func LoadSnapshot(modelPath, registryPath string) (*Snapshot, error) {
	registry, err := LoadRegistry(registryPath)
	if err != nil {
		return nil, err
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("registry at '%s' is empty alongside a trained classifier", registryPath)
	}

	checksum, err := fileChecksum(modelPath)
	if err != nil {
		return nil, fmt.Errorf("classifier state not readable at '%s': %w", modelPath, err)
	}
	if registry.ModelChecksum == "" || registry.ModelChecksum != checksum {
		return nil, fmt.Errorf("registry at '%s' does not pair with classifier state at '%s' (checksum mismatch)", registryPath, modelPath)
	}

	classifier, err := LoadClassifier(modelPath)
	if err != nil {
		return nil, err
	}

	log.Printf("snapshot: loaded generation %d (%d identities)", registry.Generation, registry.Len())
	return &Snapshot{
		Classifier: classifier,
		Registry:   registry,
		Generation: registry.Generation,
	}, nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
