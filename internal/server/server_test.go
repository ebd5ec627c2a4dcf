package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miltonlaufer/diffgraph/pkg/engine"
	"github.com/miltonlaufer/diffgraph/pkg/structure"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := engine.New(engine.Config{Workers: 1})
	t.Cleanup(func() { eng.Close() })

	logger := log.NewWithOptions(io.Discard, log.Options{})
	srv := New(eng, NewMemoryStore(), logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func testBundleJSON() []byte {
	bundle := structure.Bundle{
		DiffID: "pr-42",
		Views: map[string]*structure.Pair{
			"flow": {
				Old: structure.Graph{Nodes: []structure.Node{
					{ID: "fn", Kind: structure.KindGroup, Label: "func f"},
					{ID: "s1", Kind: structure.KindStatement, Label: "one", ParentID: "fn", StartLine: 1},
				}},
				New: structure.Graph{Nodes: []structure.Node{
					{ID: "fn", Kind: structure.KindGroup, Label: "func f"},
					{ID: "s1", Kind: structure.KindStatement, Label: "one", ParentID: "fn", StartLine: 1},
					{ID: "s2", Kind: structure.KindStatement, Label: "two", ParentID: "fn", StartLine: 2, DiffStatus: structure.DiffAdded},
				}},
			},
		},
	}
	data, _ := json.Marshal(bundle)
	return data
}

func upload(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/bundles", "application/json", bytes.NewReader(testBundleJSON()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body struct {
		ID    string   `json:"id"`
		Views []string `json:"views"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.ID)
	require.Equal(t, []string{"flow"}, body.Views)
	return body.ID
}

func TestHealthz(t *testing.T) {
	ts := testServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUploadAndLayout(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	resp, err := http.Get(ts.URL + "/api/bundles/" + id + "/layout?view=flow")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out engine.Output
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.Signature)
	assert.Len(t, out.Old.Nodes, 2)
	assert.Len(t, out.New.Nodes, 3)
}

func TestLayoutDefaultsSingleView(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	resp, err := http.Get(ts.URL + "/api/bundles/" + id + "/layout")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLayoutUnknownView(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	resp, err := http.Get(ts.URL + "/api/bundles/" + id + "/layout?view=nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLayoutUnknownBundle(t *testing.T) {
	ts := testServer(t)

	resp, err := http.Get(ts.URL + "/api/bundles/does-not-exist/layout")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "SNAPSHOT_NOT_FOUND", body.Code)
}

func TestUploadRejectsInvalidBundle(t *testing.T) {
	ts := testServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"NotJSON", "{"},
		{"NoViews", `{"views":{}}`},
		{"DuplicateIDs", `{"views":{"flow":{"old":{"nodes":[{"id":"a","kind":"statement"},{"id":"a","kind":"statement"}]},"new":{"nodes":[]}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/bundles", "application/json", bytes.NewReader([]byte(tt.body)))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestSearchEndpoint(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	resp, err := http.Get(ts.URL + "/api/bundles/" + id + "/search?view=flow&side=new&q=two")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Query string   `json:"query"`
		IDs   []string `json:"ids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "two", body.Query)
	assert.Equal(t, []string{"s2"}, body.IDs)
}

func TestIndexEndpoint(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	resp, err := http.Get(ts.URL + "/api/bundles/" + id + "/index?view=flow&side=old")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		KeyByNode map[string]string `json:"key_by_node"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.KeyByNode, "s1")
}

func TestIndexRejectsBadSide(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	resp, err := http.Get(ts.URL + "/api/bundles/" + id + "/index?view=flow&side=sideways")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteBundle(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/bundles/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(ts.URL + "/api/bundles/" + id + "/layout")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestViewsEndpoint(t *testing.T) {
	ts := testServer(t)
	id := upload(t, ts)

	resp, err := http.Get(ts.URL + "/api/bundles/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		DiffID string   `json:"diff_id"`
		Views  []string `json:"views"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "pr-42", body.DiffID)
	assert.Equal(t, []string{"flow"}, body.Views)
}
