package corpus

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGroupTag(t *testing.T) {
	name, externalID, err := ParseGroupTag("John-Smith_42")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", name)
	assert.Equal(t, "42", externalID)
}

func TestParseGroupTagWithoutExternalID(t *testing.T) {
	name, externalID, err := ParseGroupTag("Jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane", name)
	assert.Equal(t, "", externalID)
}

func TestParseGroupTagKeepsEverythingAfterFirstSeparator(t *testing.T) {
	name, externalID, err := ParseGroupTag("Jane_42_A")
	require.NoError(t, err)
	assert.Equal(t, "Jane", name)
	assert.Equal(t, "42_A", externalID)
}

func TestParseGroupTagTitleCasesName(t *testing.T) {
	name, _, err := ParseGroupTag("jane-doe_1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", name)
}

func TestParseGroupTagTitleCasesMultiByteName(t *testing.T) {
	name, externalID, err := ParseGroupTag("émile-zolá_1")
	require.NoError(t, err)
	assert.Equal(t, "Émile Zolá", name)
	assert.Equal(t, "1", externalID)
}

func TestParseGroupTagMalformed(t *testing.T) {
	for _, tag := range []string{"", "_42", "-_42"} {
		_, _, err := ParseGroupTag(tag)
		assert.ErrorIs(t, err, ErrMalformedGroupTag, "tag %q", tag)
	}
}

func TestGroupTagSanitizes(t *testing.T) {
	assert.Equal(t, "Jane-Doe_42", GroupTag("Jane Doe", "42"))
	assert.Equal(t, "Jane-Doe_42", GroupTag("Jane Doe!", "4/2"))
}

func TestGroupTagRoundTrip(t *testing.T) {
	tag := GroupTag("Jane Doe", "42")
	name, externalID, err := ParseGroupTag(tag)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", name)
	assert.Equal(t, "42", externalID)
}

func TestListGroupsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	for _, group := range []string{"Bob_10", "Alice_2", "Alice_1"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, group), 0755))
	}
	// malformed group directories are skipped, not fatal
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "_nobody"), 0755))
	// loose files at the corpus root are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.jpg"), testJPEG(t), 0644))

	store, err := NewStore(dir)
	require.NoError(t, err)

	groups, err := store.ListGroups()
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Alice_1", groups[0].Tag)
	assert.Equal(t, "Alice_2", groups[1].Tag)
	assert.Equal(t, "Bob_10", groups[2].Tag)
}

func TestListGroupsCollectsOnlyImages(t *testing.T) {
	dir := t.TempDir()
	groupDir := filepath.Join(dir, "Alice_1")
	require.NoError(t, os.MkdirAll(groupDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(groupDir, "a.jpg"), testJPEG(t), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(groupDir, "b.PNG"), []byte("png"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(groupDir, "notes.txt"), []byte("x"), 0644))

	store, err := NewStore(dir)
	require.NoError(t, err)

	groups, err := store.ListGroups()
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].ImagePaths, 2)
	assert.Equal(t, "Alice", groups[0].Name)
	assert.Equal(t, "1", groups[0].ExternalID)
}

func TestSaveSampleCreatesGroupDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path, err := store.SaveSample("Jane Doe", "42", testJPEG(t))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Jane-Doe_42"), filepath.Dir(path))
	assert.Equal(t, ".jpg", filepath.Ext(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSaveSampleRejectsUndecodableImage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveSample("Jane Doe", "42", []byte("not an image"))
	assert.ErrorIs(t, err, ErrUndecodableImage)
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
