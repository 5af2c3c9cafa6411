package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcbforge/pcbforge/pkg/cache"
	"github.com/pcbforge/pcbforge/pkg/config"
)

// boardOutline is a closed 10mm square outline stroke.
const boardOutline = "%FSLAX35Y35*%\n%MOMM*%\n" +
	"%ADD10C,0.2*%\n" +
	"D10*\n" +
	"X1000000Y1000000D02*\n" +
	"G01X2000000Y1000000D01*\n" +
	"X2000000Y2000000D01*\n" +
	"X1000000Y2000000D01*\n" +
	"X1000000Y1000000D01*\n" +
	"M02*\n"

func testServer(t *testing.T, c cache.Cache) *Server {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "edge.gbr")
	require.NoError(t, os.WriteFile(path, []byte(boardOutline), 0o644))

	job := &config.Job{
		ProjectName:   "blinky",
		BoardVersion:  "2",
		AlignBackside: true,
		Dir:           dir,
		Outputs: []config.Output{
			{File: "edge.gcode", Stages: []config.Stage{{
				Name:        "edge.gcode#1",
				Operation:   config.OpCutBoard,
				ArtworkPath: path,
				MachineName: "lunar",
			}}},
		},
	}
	return New(job, c, nil, log.New(io.Discard))
}

func TestHandleIndex(t *testing.T) {
	ts := httptest.NewServer(testServer(t, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "<h1>blinky</h1>")
	assert.Contains(t, string(body), "/layers/edge.gbr")
	assert.Contains(t, string(body), "cut_board")
}

func TestHandleJob(t *testing.T) {
	ts := httptest.NewServer(testServer(t, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/job")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var doc struct {
		ProjectName string   `json:"project_name"`
		Layers      []string `json:"layers"`
		Outputs     []struct {
			File   string `json:"file"`
			Stages []struct {
				Operation string `json:"operation"`
				Artwork   string `json:"artwork"`
				Machine   string `json:"machine"`
			} `json:"stages"`
		} `json:"outputs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))

	assert.Equal(t, "blinky", doc.ProjectName)
	assert.Equal(t, []string{"edge.gbr"}, doc.Layers)
	require.Len(t, doc.Outputs, 1)
	assert.Equal(t, "edge.gcode", doc.Outputs[0].File)
	require.Len(t, doc.Outputs[0].Stages, 1)
	assert.Equal(t, "cut_board", doc.Outputs[0].Stages[0].Operation)
	assert.Equal(t, "edge.gbr", doc.Outputs[0].Stages[0].Artwork)
	assert.Equal(t, "lunar", doc.Outputs[0].Stages[0].Machine)
}

func TestHandleLayer(t *testing.T) {
	ts := httptest.NewServer(testServer(t, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/layers/edge.gbr")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<svg ")
	assert.Contains(t, string(body), "<path ")
}

func TestHandleLayerSVGSuffix(t *testing.T) {
	ts := httptest.NewServer(testServer(t, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/layers/edge.gbr.svg")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
}

func TestHandleLayerUnknown(t *testing.T) {
	ts := httptest.NewServer(testServer(t, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/layers/nope.gbr")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleLayerCaches(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	srv := testServer(t, c)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	get := func() string {
		resp, err := http.Get(ts.URL + "/layers/edge.gbr")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	first := get()
	second := get()
	assert.Equal(t, first, second)
}

func TestLayerNames(t *testing.T) {
	srv := testServer(t, nil)
	assert.Equal(t, []string{"edge.gbr"}, srv.LayerNames())
}
