package recognition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Identity is the human-meaningful record a classifier label resolves to.
type Identity struct {
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

// Registry is the bidirectional mapping between classifier labels and
// identities. Labels are allocated monotonically and never reassigned to a
// different identity within a registry lifetime. The registry is persisted
// as a sidecar of the classifier model file; both carry the same generation
// and must only ever be loaded as a matching pair.
type Registry struct {
	labels    map[int]Identity
	index     map[Identity]int
	nextLabel int

	// Generation and ModelChecksum tie the persisted registry to the exact
	// classifier state file it was trained with
	Generation    uint64
	ModelChecksum string
}

func NewRegistry() *Registry {
	return &Registry{
		labels: make(map[int]Identity),
		index:  make(map[Identity]int),
	}
}

// ResolveOrCreate returns the label already assigned to (name, externalID),
// or allocates the next unused label and registers a new identity.
func (r *Registry) ResolveOrCreate(name, externalID string) int {
	id := Identity{Name: name, ExternalID: externalID}
	if label, ok := r.index[id]; ok {
		return label
	}
	label := r.nextLabel
	r.labels[label] = id
	r.index[id] = label
	r.nextLabel++
	return label
}

// Lookup resolves a label to its identity.
func (r *Registry) Lookup(label int) (Identity, error) {
	id, ok := r.labels[label]
	if !ok {
		return Identity{}, fmt.Errorf("label %d: %w", label, ErrIdentityNotFound)
	}
	return id, nil
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	return len(r.labels)
}

// Labels returns all assigned labels in ascending order.
func (r *Registry) Labels() []int {
	out := make([]int, 0, len(r.labels))
	for label := range r.labels {
		out = append(out, label)
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy. Training builds its label assignments
// on a clone so a failed retrain never touches the live registry.
func (r *Registry) Clone() *Registry {
	clone := NewRegistry()
	for label, id := range r.labels {
		clone.labels[label] = id
		clone.index[id] = label
	}
	clone.nextLabel = r.nextLabel
	clone.Generation = r.Generation
	clone.ModelChecksum = r.ModelChecksum
	return clone
}

type registryEntry struct {
	Label      int    `json:"label"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
}

type registryFile struct {
	Generation    uint64          `json:"generation"`
	ModelChecksum string          `json:"model_checksum"`
	NextLabel     int             `json:"next_label"`
	Entries       []registryEntry `json:"entries"`
}

// Save writes the registry to path atomically (temp file + rename), so a
// crash mid-write can never leave a partially written mapping behind.
func (r *Registry) Save(path string) error {
	entries := make([]registryEntry, 0, len(r.labels))
	for _, label := range r.Labels() {
		id := r.labels[label]
		entries = append(entries, registryEntry{Label: label, Name: id.Name, ExternalID: id.ExternalID})
	}

	data, err := json.MarshalIndent(registryFile{
		Generation:    r.Generation,
		ModelChecksum: r.ModelChecksum,
		NextLabel:     r.nextLabel,
		Entries:       entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".registry-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp registry file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace registry file '%s': %w", path, err)
	}
	return nil
}

// LoadRegistry restores a registry from path. Any read or decode failure is
// returned as-is; the caller is expected to treat it as corrupt paired state
// and trigger a full retrain rather than operate on a partial mapping.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file '%s': %w", path, err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode registry file '%s': %w", path, err)
	}

	r := NewRegistry()
	r.Generation = file.Generation
	r.ModelChecksum = file.ModelChecksum
	for _, e := range file.Entries {
		id := Identity{Name: e.Name, ExternalID: e.ExternalID}
		if _, dup := r.labels[e.Label]; dup {
			return nil, fmt.Errorf("registry file '%s' has duplicate label %d", path, e.Label)
		}
		r.labels[e.Label] = id
		r.index[id] = e.Label
		if e.Label >= r.nextLabel {
			r.nextLabel = e.Label + 1
		}
	}
	if file.NextLabel > r.nextLabel {
		r.nextLabel = file.NextLabel
	}
	return r, nil
}
