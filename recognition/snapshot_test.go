package recognition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveTestRegistry writes a one-identity registry paired (or mispaired) with
// the given model checksum.
func saveTestRegistry(t *testing.T, path, checksum string) {
	t.Helper()
	r := NewRegistry()
	r.ResolveOrCreate("Jane Doe", "42")
	r.Generation = 2
	r.ModelChecksum = checksum
	require.NoError(t, r.Save(path))
}

func TestLoadSnapshotRefusesMixedPair(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yml")
	registryPath := filepath.Join(dir, "labels.json")

	// simulate a crash between the two renames: the model file on disk is a
	// newer training run than the one the registry was paired with
	require.NoError(t, os.WriteFile(modelPath, []byte("model state, run two"), 0644))
	staleChecksum, err := fileChecksum(modelPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(modelPath, []byte("model state, run three"), 0644))
	saveTestRegistry(t, registryPath, staleChecksum)

	_, err = LoadSnapshot(modelPath, registryPath)
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestLoadSnapshotRefusesRegistryWithoutChecksum(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yml")
	registryPath := filepath.Join(dir, "labels.json")

	require.NoError(t, os.WriteFile(modelPath, []byte("model state"), 0644))
	saveTestRegistry(t, registryPath, "")

	_, err := LoadSnapshot(modelPath, registryPath)
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestLoadSnapshotRefusesMissingModelFile(t *testing.T) {
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "labels.json")
	saveTestRegistry(t, registryPath, "irrelevant")

	_, err := LoadSnapshot(filepath.Join(dir, "missing.yml"), registryPath)
	assert.Error(t, err)
}

func TestLoadSnapshotRefusesEmptyRegistry(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.yml")
	registryPath := filepath.Join(dir, "labels.json")

	require.NoError(t, os.WriteFile(modelPath, []byte("model state"), 0644))
	r := NewRegistry()
	require.NoError(t, r.Save(registryPath))

	_, err := LoadSnapshot(modelPath, registryPath)
	assert.ErrorContains(t, err, "empty")
}

func TestFileChecksumTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state")

	require.NoError(t, os.WriteFile(path, []byte("alpha"), 0644))
	first, err := fileChecksum(path)
	require.NoError(t, err)

	again, err := fileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.WriteFile(path, []byte("beta"), 0644))
	changed, err := fileChecksum(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}
