package io

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbforge/pcbforge/pkg/artwork"
	"github.com/pcbforge/pcbforge/pkg/contour"
	"github.com/pcbforge/pcbforge/pkg/geom"
)

func TestWriteAtomicCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forge", "out", "cut.gcode")

	require.NoError(t, WriteAtomic(path, []byte("G90\nM2\n"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "G90\nM2\n", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteAtomicOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gcode")
	require.NoError(t, WriteAtomic(path, []byte("first"), 0o644))
	require.NoError(t, WriteAtomic(path, []byte("second"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteAtomicFailureKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.gcode")
	require.NoError(t, os.WriteFile(path, []byte("intact"), 0o644))

	// A blocked parent makes the temp creation fail before any write.
	blocked := filepath.Join(dir, "out.gcode", "nested.gcode")
	require.Error(t, WriteAtomic(blocked, []byte("x"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "intact", string(data))
}

func square(cx, cy, half float64) geom.Ring {
	return geom.Ring{
		{X: cx - half, Y: cy - half},
		{X: cx + half, Y: cy - half},
		{X: cx + half, Y: cy + half},
		{X: cx - half, Y: cy + half},
		{X: cx - half, Y: cy - half},
	}
}

func TestWriteForestJSON(t *testing.T) {
	forest, err := contour.Classify([]contour.Polygon{
		{Ring: square(0, 0, 10), Polarity: artwork.Dark, Source: artwork.KindRegion, Label: "board"},
		{Ring: square(0, 0, 2), Polarity: artwork.Dark, Source: artwork.KindFlash, Label: "hole"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteForestJSON(forest, &buf))

	var doc struct {
		Nodes []map[string]any `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Nodes, 2)

	assert.Equal(t, "board", doc.Nodes[0]["label"])
	assert.Equal(t, "outer-boundary", doc.Nodes[0]["class"])
	assert.Equal(t, true, doc.Nodes[0]["solid"])
	assert.NotContains(t, doc.Nodes[0], "parent")

	assert.Equal(t, "hole", doc.Nodes[1]["label"])
	assert.Equal(t, "inner-hole", doc.Nodes[1]["class"])
	assert.Equal(t, "board", doc.Nodes[1]["parent"])
	assert.Equal(t, float64(1), doc.Nodes[1]["depth"])
}
