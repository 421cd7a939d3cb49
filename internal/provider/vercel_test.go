package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-publisher/internal/types"
)

const testToken = "tok_123"

func newTestVercel(t *testing.T, mux *http.ServeMux) (*Vercel, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewVercel(WithBaseURL(server.URL), WithHTTPClient(server.Client())), server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
}

func testBundle(t *testing.T) *types.Bundle {
	t.Helper()
	b := types.NewBundle()
	require.NoError(t, b.Add(types.IndexFile, types.TextFile("<!DOCTYPE html>")))
	require.NoError(t, b.Add(types.CVDataFile, types.TextFile("{}")))
	require.NoError(t, b.Add("jane-doe.pdf", types.Base64File("JVBERi0=")))
	return b
}

func TestValidateCredentials_Valid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/user", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		writeJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{"username": "jane", "email": "jane@example.com", "name": nil},
		})
	})
	v, _ := newTestVercel(t, mux)

	res := v.ValidateCredentials(context.Background(), testToken)
	require.True(t, res.Valid)
	assert.Equal(t, "jane", res.Account.Username)
	assert.Equal(t, "jane@example.com", res.Account.Email)
	assert.Empty(t, res.Account.Name)
	assert.Equal(t, "https://vercel.com/api/www/avatar?s=64&u=jane", res.Account.Avatar)
}

func TestValidateCredentials_Invalid(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v2/user", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusForbidden, map[string]any{
				"error": map[string]any{"code": "forbidden", "message": "Not authorized"},
			})
		})
		v, _ := newTestVercel(t, mux)

		res := v.ValidateCredentials(context.Background(), testToken)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Reason, "Not authorized")
	})

	t.Run("empty token makes no call", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unexpected request %s", r.URL.Path)
		})
		v, _ := newTestVercel(t, mux)

		res := v.ValidateCredentials(context.Background(), "  ")
		assert.False(t, res.Valid)
		assert.Equal(t, "token is required", res.Reason)
	})

	t.Run("unreachable", func(t *testing.T) {
		v, server := newTestVercel(t, http.NewServeMux())
		server.Close()

		res := v.ValidateCredentials(context.Background(), testToken)
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Reason)
	})
}

func TestCreateDeployment(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v13/deployments", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           "dpl_abc",
			"url":          "svp-jane-doe-xyz.vercel.app",
			"readyState":   "QUEUED",
			"createdAt":    int64(1700000000000),
			"inspectorUrl": "https://vercel.com/jane/svp-jane-doe/dpl_abc",
		})
	})
	v, _ := newTestVercel(t, mux)

	d, err := v.CreateDeployment(context.Background(), testToken, Request{
		Name:    "Jane Doe",
		Bundle:  testBundle(t),
		EnvVars: map[string]string{types.EnvGoogleAnalyticsID: "G-TEST123"},
	})
	require.NoError(t, err)

	assert.Equal(t, "dpl_abc", d.ID)
	assert.Equal(t, "svp-jane-doe", d.Project)
	assert.Equal(t, StateQueued, d.ReadyState)
	assert.Equal(t, "https://svp-jane-doe-xyz.vercel.app", d.URL)
	assert.Equal(t, "https://vercel.com/jane/svp-jane-doe/settings", d.SettingsURL)
	assert.Equal(t, int64(1700000000000), d.CreatedAt.UnixMilli())

	assert.Equal(t, "svp-jane-doe", body["name"])
	assert.Equal(t, "production", body["target"])
	assert.Equal(t, map[string]any{"framework": nil}, body["projectSettings"])
	assert.Equal(t, map[string]any{"GOOGLE_ANALYTICS_ID": "G-TEST123"}, body["env"])
	assert.Equal(t, []any{
		map[string]any{"file": "index.html", "data": "<!DOCTYPE html>", "encoding": "utf8"},
		map[string]any{"file": "cv-data.json", "data": "{}", "encoding": "utf8"},
		map[string]any{"file": "jane-doe.pdf", "data": "JVBERi0=", "encoding": "base64"},
	}, body["files"])
}

func TestCreateDeployment_KeepsExistingPrefixAndOmitsEmptyEnv(t *testing.T) {
	var body map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v13/deployments", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{"id": "dpl_1", "readyState": "BUILDING"})
	})
	v, _ := newTestVercel(t, mux)

	d, err := v.CreateDeployment(context.Background(), testToken, Request{Name: "svp-portfolio", Bundle: testBundle(t)})
	require.NoError(t, err)
	assert.Equal(t, "svp-portfolio", d.Project)
	assert.Empty(t, d.SettingsURL)
	assert.NotContains(t, body, "env")
}

func TestCreateDeployment_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, types.ErrorAuthentication},
		{"forbidden", http.StatusForbidden, types.ErrorAuthentication},
		{"bad request", http.StatusBadRequest, types.ErrorValidation},
		{"rate limited", http.StatusTooManyRequests, types.ErrorNetwork},
		{"server error", http.StatusBadGateway, types.ErrorNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /v13/deployments", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]any{"error": map[string]any{"message": "nope"}})
			})
			v, _ := newTestVercel(t, mux)

			_, err := v.CreateDeployment(context.Background(), testToken, Request{Name: "jane", Bundle: testBundle(t)})
			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.want, perr.Kind)
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, "nope", perr.Message)
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		v, server := newTestVercel(t, http.NewServeMux())
		server.Close()

		_, err := v.CreateDeployment(context.Background(), testToken, Request{Name: "jane", Bundle: testBundle(t)})
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, types.ErrorNetwork, perr.Kind)
	})

	t.Run("empty bundle", func(t *testing.T) {
		v, _ := newTestVercel(t, http.NewServeMux())
		_, err := v.CreateDeployment(context.Background(), testToken, Request{Name: "jane", Bundle: types.NewBundle()})
		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, types.ErrorValidation, perr.Kind)
	})
}

func TestResolveLiveDomain(t *testing.T) {
	branch := "preview"
	tests := []struct {
		name    string
		status  int
		domains []map[string]any
		want    string
	}{
		{
			name:   "verified production domain",
			status: http.StatusOK,
			domains: []map[string]any{
				{"name": "svp-jane-git-main.vercel.app", "verified": true, "gitBranch": branch},
				{"name": "unverified.dev", "verified": false},
				{"name": "jane.dev", "verified": true, "gitBranch": nil, "customEnvironmentId": nil},
			},
			want: "https://jane.dev",
		},
		{
			name:    "no production domain",
			status:  http.StatusOK,
			domains: []map[string]any{{"name": "x.dev", "verified": false}},
			want:    "https://svp-jane.vercel.app",
		},
		{
			name:   "lookup fails",
			status: http.StatusInternalServerError,
			want:   "https://svp-jane.vercel.app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /v9/projects/svp-jane/domains", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "100", r.URL.Query().Get("limit"))
				writeJSON(w, tt.status, map[string]any{"domains": tt.domains})
			})
			v, _ := newTestVercel(t, mux)
			assert.Equal(t, tt.want, v.ResolveLiveDomain(context.Background(), testToken, "svp-jane"))
		})
	}
}

func TestDeploymentState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v13/deployments/dpl_abc", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": "dpl_abc", "readyState": "READY"})
	})
	mux.HandleFunc("GET /v13/deployments/dpl_gone", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "Deployment not found"}})
	})
	v, _ := newTestVercel(t, mux)

	state, err := v.DeploymentState(context.Background(), testToken, "dpl_abc")
	require.NoError(t, err)
	assert.Equal(t, StateReady, state)
	assert.True(t, state.IsTerminal())

	_, err = v.DeploymentState(context.Background(), testToken, "dpl_gone")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrorValidation, perr.Kind)
}

func TestStreamBuildEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/deployments/dpl_abc/events", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		assert.Equal(t, "application/stream+json", r.Header.Get("Accept"))
		assert.Equal(t, "1", r.URL.Query().Get("follow"))
		assert.Equal(t, "1", r.URL.Query().Get("builds"))

		w.Header().Set("Content-Type", "application/stream+json")
		lines := []string{
			`{"type":"stdout","created":1,"text":"Cloning completed"}`,
			``,
			`not json`,
			`{"type":"stdout","payload":{"text":"Build completed in 3s","date":2}}`,
		}
		for _, line := range lines {
			_, _ = fmt.Fprintln(w, line)
			w.(http.Flusher).Flush()
		}
	})
	v, _ := newTestVercel(t, mux)

	stream, err := v.StreamBuildEvents(context.Background(), testToken, "dpl_abc")
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Type: "stdout", Text: "Cloning completed", Created: 1}, ev)

	ev, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, Event{Type: "stdout", Text: "Build completed in 3s", Created: 2}, ev)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamBuildEvents_CloseTearsDownConnection(t *testing.T) {
	disconnected := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/deployments/dpl_abc/events", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, `{"type":"stdout","text":"Installing dependencies"}`)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(disconnected)
	})
	v, _ := newTestVercel(t, mux)

	stream, err := v.StreamBuildEvents(context.Background(), testToken, "dpl_abc")
	require.NoError(t, err)

	_, err = stream.Next()
	require.NoError(t, err)

	nextErr := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		nextErr <- err
	}()

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close(), "Close is idempotent")

	select {
	case err := <-nextErr:
		assert.Error(t, err)
		assert.False(t, errors.Is(err, io.EOF))
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Close")
	}
	select {
	case <-disconnected:
	case <-time.After(5 * time.Second):
		t.Fatal("server never saw the connection close")
	}
}

func TestStreamBuildEvents_Rejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v3/deployments/dpl_abc/events", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "bad token"}})
	})
	v, _ := newTestVercel(t, mux)

	_, err := v.StreamBuildEvents(context.Background(), testToken, "dpl_abc")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrorAuthentication, perr.Kind)
}

func TestListProjects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v10/projects", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "svp", r.URL.Query().Get("search"))
		writeJSON(w, http.StatusOK, map[string]any{"projects": []map[string]any{
			{"id": "p1", "name": "svp-jane", "createdAt": 1700000000000, "alias": []map[string]any{
				{"domain": "svp-jane-git.vercel.app", "target": "preview"},
				{"domain": "jane.dev", "target": "PRODUCTION"},
			}},
			{"id": "p2", "name": "svp-draft", "alias": []map[string]any{}},
			{"id": "p3", "name": "other", "alias": []map[string]any{{"domain": "x.dev", "target": "production"}}},
		}})
	})
	v, _ := newTestVercel(t, mux)

	projects, err := v.ListProjects(context.Background(), testToken)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "svp-jane", projects[0].Name)
	assert.Equal(t, "jane.dev", projects[0].Domain)
}

const publishedDocument = `{
  "generalInfo": {"fullName": "Jane Doe", "professionalTitle": "Engineer", "photo": "./profile-photo-1700000000000.webp"},
  "experience": {"experiences": []},
  "education": {"education": []},
  "socials": {"socials": []},
  "analytics": {"type": "umami", "umamiWebsiteId": "abc-123"},
  "template": "modern"
}`

func TestFetchPublishedDocument(t *testing.T) {
	var host string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v9/projects/svp-jane/domains", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"domains": []map[string]any{{"name": host, "verified": true}}})
	})
	mux.HandleFunc("GET /cv-data.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(publishedDocument))
	})
	mux.HandleFunc("GET /broken/cv-data.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Replace(publishedDocument, `"modern"`, `"Modern!"`, 1)))
	})

	server := httptest.NewTLSServer(mux)
	defer server.Close()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	host = u.Host

	v := NewVercel(WithBaseURL(server.URL), WithHTTPClient(server.Client()))

	doc, err := v.FetchPublishedDocument(context.Background(), testToken, "svp-jane")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", doc.GeneralInfo.FullName)
	assert.Equal(t, "modern", doc.Template)
	assert.Equal(t, types.AnalyticsUmami, doc.Analytics.Type)
	assert.Equal(t, server.URL+"/profile-photo-1700000000000.webp", doc.GeneralInfo.Photo)

	host = u.Host + "/broken"
	_, err = v.FetchPublishedDocument(context.Background(), testToken, "svp-jane")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.ErrorValidation, perr.Kind)

	host = u.Host + "/missing"
	_, err = v.FetchPublishedDocument(context.Background(), testToken, "svp-jane")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusNotFound, perr.StatusCode)
}

func TestReadyState_IsTerminal(t *testing.T) {
	for _, s := range []ReadyState{StateReady, StateError, StateCanceled} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []ReadyState{StateQueued, StateInitializing, StateBuilding, ""} {
		assert.False(t, s.IsTerminal(), s)
	}
}
