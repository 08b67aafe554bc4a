// Package corpus manages the on-disk training corpus: one directory per
// enrolled person, named by a group tag, holding that person's sample images.
package corpus

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/attendly/attendancebackend/utils"
	"github.com/disintegration/imaging"
	"github.com/facette/natsort"
	"github.com/google/uuid"
)

// ErrMalformedGroupTag is returned when a corpus directory name cannot be
// parsed into a (name, external id) pair.
var ErrMalformedGroupTag = errors.New("malformed corpus group tag")

// ErrUndecodableImage is returned when uploaded registration bytes do not
// decode as a supported raster format.
var ErrUndecodableImage = errors.New("undecodable image")

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Group is one person's slice of the corpus.
type Group struct {
	Tag        string // directory name, e.g. "John-Smith_42"
	Name       string
	ExternalID string
	ImagePaths []string
}

// Store reads and writes the corpus directory.
type Store struct {
	basePath string
}

func NewStore(basePath string) (*Store, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid corpus path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBase, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory '%s': %w", absBase, err)
	}
	return &Store{basePath: absBase}, nil
}

func (s *Store) BasePath() string {
	return s.basePath
}

// ParseGroupTag splits a corpus directory name into its identity attributes.
// The segment before the first underscore is the display name, with dashes
// rejoined as spaces and title-cased; everything after the first underscore
// is the external id (empty when absent). An empty name is malformed.
func ParseGroupTag(tag string) (name, externalID string, err error) {
	namePart, extPart, _ := strings.Cut(tag, "_")
	name = titleCase(strings.ReplaceAll(namePart, "-", " "))
	if strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("group tag '%s': %w", tag, ErrMalformedGroupTag)
	}
	return name, extPart, nil
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// GroupTag builds the directory name for an identity, sanitizing both fields
// the same way registration inputs were sanitized in the original corpus
// convention (alphanumerics kept, spaces become dashes).
func GroupTag(name, externalID string) string {
	return sanitizeName(name) + "_" + sanitizeExternalID(externalID)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == ' ' || isAlphanumeric(r) {
			b.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "-")
}

func sanitizeExternalID(externalID string) string {
	var b strings.Builder
	for _, r := range externalID {
		if isAlphanumeric(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ListGroups enumerates corpus groups in natural-sort order so label
// assignment stays reproducible across retrains. Directories with malformed
// tags are skipped with a warning rather than failing the whole scan.
func (s *Store) ListGroups() ([]Group, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus directory '%s': %w", s.basePath, err)
	}

	var tags []string
	for _, entry := range entries {
		if entry.IsDir() {
			tags = append(tags, entry.Name())
		}
	}
	natsort.Sort(tags)

	var groups []Group
	for _, tag := range tags {
		name, externalID, err := ParseGroupTag(tag)
		if err != nil {
			log.Printf("corpus: skipping group '%s': %v", tag, err)
			continue
		}

		images, err := s.listGroupImages(tag)
		if err != nil {
			log.Printf("corpus: skipping group '%s': %v", tag, err)
			continue
		}

		groups = append(groups, Group{
			Tag:        tag,
			Name:       name,
			ExternalID: externalID,
			ImagePaths: images,
		})
	}
	return groups, nil
}

func (s *Store) listGroupImages(tag string) ([]string, error) {
	groupDir := filepath.Join(s.basePath, tag)
	entries, err := os.ReadDir(groupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read group directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	natsort.Sort(names)

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(groupDir, name)
	}
	return paths, nil
}

// SaveSample stores one uploaded registration image under the identity's
// group directory. The image is decoded, EXIF-orientation-normalized, and
// re-encoded as a JPEG with a UUID filename. Returns the saved path.
func (s *Store) SaveSample(name, externalID string, imageData []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	img = utils.ApplyEXIFOrientation(img, imageData)

	groupDir := filepath.Join(s.basePath, GroupTag(name, externalID))
	if err := os.MkdirAll(groupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create group directory '%s': %w", groupDir, err)
	}

	sampleUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for sample filename: %w", err)
	}
	savePath := filepath.Join(groupDir, sampleUUID.String()+".jpg")

	if err := imaging.Save(img, savePath, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("failed to save sample to '%s': %w", savePath, err)
	}

	log.Printf("corpus: saved registration sample for %s (%s) to %s", name, externalID, savePath)
	return savePath, nil
}
