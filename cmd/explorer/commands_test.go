package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novacode/novacode/pkg/protocol"
)

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/projects/p1/listing", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.Listing{Paths: []string{"README.md", "src/app.js", "src/lib/util.js"}})
	})
	mux.HandleFunc("GET /api/v1/projects/empty/listing", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.Listing{})
	})
	mux.HandleFunc("GET /api/v1/projects/p1/content/src/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("console.log(1)"))
	})
	mux.HandleFunc("DELETE /api/v1/projects/p1/files/src/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /api/v1/projects/p1/files/nope.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"File not found","code":404}`, http.StatusNotFound)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestTreeCommand(t *testing.T) {
	ts := newFakeServer(t)
	out, err := execute(t, "--server", ts.URL, "tree", "p1")
	require.NoError(t, err)
	assert.Equal(t, "src/\n  lib/\n    util.js\n  app.js\nREADME.md\n", out)
}

func TestTreeCommand_EmptyProject(t *testing.T) {
	ts := newFakeServer(t)
	out, err := execute(t, "--server", ts.URL, "tree", "empty")
	require.NoError(t, err)
	assert.Equal(t, "No files available\n", out)
}

func TestCatCommand(t *testing.T) {
	ts := newFakeServer(t)
	out, err := execute(t, "--server", ts.URL, "cat", "p1", "src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", out)

	_, err = execute(t, "--server", ts.URL, "cat", "p1", "src")
	assert.ErrorContains(t, err, "is a folder")

	_, err = execute(t, "--server", ts.URL, "cat", "p1", "nope.txt")
	assert.ErrorContains(t, err, "not found")
}

func TestTreeCommand_Flat(t *testing.T) {
	ts := newFakeServer(t)
	t.Cleanup(func() { flatTree = false })
	out, err := execute(t, "--server", ts.URL, "tree", "--flat", "p1")
	require.NoError(t, err)
	assert.Equal(t, "src/lib/util.js\nsrc/app.js\nREADME.md\n", out)
}

func TestRmCommand(t *testing.T) {
	ts := newFakeServer(t)
	out, err := execute(t, "--server", ts.URL, "rm", "p1", "/src/app.js")
	require.NoError(t, err)
	assert.Equal(t, "deleted src/app.js\n", out)

	_, err = execute(t, "--server", ts.URL, "rm", "p1", "nope.txt")
	assert.ErrorContains(t, err, "not found")
}

func TestPrintTree_Empty(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, printTree(&b, nil))
	assert.Equal(t, "No files available\n", b.String())
}
