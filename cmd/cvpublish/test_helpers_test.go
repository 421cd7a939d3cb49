package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-publisher/internal/config"
)

const testToken = "test-token"

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the root command in-process with flags reset to their
// defaults, so tests do not leak flag values into each other.
func execute(t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()
	resetFlags(rootCmd)
	configPath, verbose = "", false

	var stdout, stderr bytes.Buffer
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// isolateEnv clears every variable config.Load reads.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvToken, config.EnvProjectPrefix, config.EnvMonitorTimeout,
		config.EnvAPIBaseURL, config.EnvIncludePDF, config.EnvChromeTimeout,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

// fakeVercel is a TLS httptest server speaking the subset of the Vercel API
// the CLI uses. Live domains resolve back to the server itself.
type fakeVercel struct {
	*httptest.Server

	mu         sync.Mutex
	buildLog   []string
	state      string
	domains    []map[string]any
	deployment map[string]any

	// unpublished makes the live domain answer 404 for cv-data.json.
	unpublished bool
}

func newFakeVercel(t *testing.T) *fakeVercel {
	t.Helper()
	isolateEnv(t)

	f := &fakeVercel{
		buildLog: []string{"Installing dependencies", "Build completed in 2s"},
		state:    "BUILDING",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/user", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{"username": "jane", "email": "jane@example.com", "name": "Jane Doe"},
		})
	})
	mux.HandleFunc("POST /v13/deployments", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"message": err.Error()}})
			return
		}
		f.mu.Lock()
		f.deployment = body
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           "dpl_1",
			"url":          "svp-jane-doe-abc.vercel.app",
			"readyState":   "QUEUED",
			"createdAt":    int64(1700000000000),
			"inspectorUrl": "https://vercel.com/jane/svp-jane-doe/dpl_1",
		})
	})
	mux.HandleFunc("GET /v13/deployments/dpl_1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"id": "dpl_1", "readyState": f.state})
	})
	mux.HandleFunc("GET /v3/deployments/dpl_1/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		lines := append([]string(nil), f.buildLog...)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/stream+json")
		for _, line := range lines {
			data, _ := json.Marshal(map[string]any{"type": "stdout", "text": line})
			fmt.Fprintf(w, "%s\n", data)
		}
	})
	mux.HandleFunc("GET /v9/projects/{project}/domains", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		domains := f.domains
		if domains == nil {
			domains = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"domains": domains})
	})
	mux.HandleFunc("GET /v10/projects", func(w http.ResponseWriter, r *http.Request) {
		if !f.authorized(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": []map[string]any{
			{
				"id": "prj_1", "name": "svp-jane-doe", "createdAt": int64(1700000000000),
				"alias": []map[string]any{{"domain": "jane-doe.example.app", "target": "PRODUCTION"}},
			},
			{
				"id": "prj_2", "name": "svp-draft", "createdAt": int64(1700000000000),
				"alias": []map[string]any{},
			},
		}})
	})
	mux.HandleFunc("GET /cv-data.json", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		unpublished := f.unpublished
		f.mu.Unlock()
		if unpublished {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, "testdata/cv.json")
	})

	f.Server = httptest.NewTLSServer(mux)
	t.Cleanup(f.Close)

	t.Setenv(config.EnvAPIBaseURL, f.URL)
	t.Setenv(config.EnvToken, testToken)
	httpClient = f.Client()
	t.Cleanup(func() { httpClient = nil })
	return f
}

func (f *fakeVercel) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": map[string]any{"code": "forbidden", "message": "Not authorized"},
		})
		return false
	}
	return true
}

// serveLiveDomain makes the project's live domain point back at the server.
func (f *fakeVercel) serveLiveDomain() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.domains = []map[string]any{{"name": strings.TrimPrefix(f.URL, "https://"), "verified": true}}
}

func (f *fakeVercel) uploaded() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deployment
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
