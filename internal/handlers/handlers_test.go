package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipetrail/pipetrail/internal/auth"
	"github.com/pipetrail/pipetrail/internal/config"
	"github.com/pipetrail/pipetrail/internal/graph/graphtest"
	"github.com/pipetrail/pipetrail/internal/models"
	"github.com/pipetrail/pipetrail/internal/story"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, s *graphtest.Store, mutate func(*config.Config)) *gin.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Version = "1.2.3"
	if mutate != nil {
		mutate(cfg)
	}
	manager, err := story.NewManager(s, cfg.StoryVariants)
	require.NoError(t, err)
	return NewRouter(NewAPI(s, manager, cfg, nil))
}

func doGet(r *gin.Engine, path string, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// seedStory wires bug -> commit -> build so the story endpoints have
// something to walk.
func seedStory(s *graphtest.Store) {
	bug := s.AddNode([]string{models.LabelBugzillaBug}, map[string]interface{}{
		"id": "12345", "creation_time": time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	commit := s.AddNode([]string{models.LabelDistGitCommit}, map[string]interface{}{
		"hash": "8a63adb248ba", "commit_date": time.Date(2019, 6, 1, 0, 0, 10, 0, time.UTC),
	})
	build := s.AddNode([]string{models.LabelKojiBuild}, map[string]interface{}{
		"id": "710916", "name": "kernel", "version": "4.18.0", "release": "80.el8",
		"creation_time":   time.Date(2019, 6, 1, 0, 0, 20, 0, time.UTC),
		"completion_time": time.Date(2019, 6, 1, 0, 0, 30, 0, time.UTC),
		"state":           1,
	})
	s.Relate(commit, bug, "RESOLVED")
	s.Relate(build, commit, "BUILT_FROM")
}

func TestAbout(t *testing.T) {
	r := newTestRouter(t, graphtest.New(), nil)
	w := doGet(r, "/api/v1/about")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, false, body["auth_required"])
	assert.Equal(t, "1.2.3", body["version"])
}

func TestGetResource(t *testing.T) {
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/bugzillabug/12345")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "RHBZ#12345", body["display_name"])
	// Relationships are expanded by default.
	assert.Contains(t, body, "resolved_by_commits")

	w = doGet(r, "/api/v1/bugzillabug/12345?relationship=false")
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeJSON(t, w)
	assert.NotContains(t, body, "resolved_by_commits")

	w = doGet(r, "/api/v1/bugzillabug/12345?relationship=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResourceNotFound(t *testing.T) {
	r := newTestRouter(t, graphtest.New(), nil)
	w := doGet(r, "/api/v1/bugzillabug/999")
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, float64(http.StatusNotFound), body["status"])
	assert.NotEmpty(t, body["message"])
}

func TestGetResourceUnknownKind(t *testing.T) {
	r := newTestRouter(t, graphtest.New(), nil)
	w := doGet(r, "/api/v1/flatpak/1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRelationship(t *testing.T) {
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/relationships/bugzillabug/12345/resolved_by_commits")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)

	w = doGet(r, "/api/v1/relationships/bugzillabug/12345/owners")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStory(t *testing.T) {
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/story/bugzillabug/12345")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 3)

	meta, ok := body["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "container", meta["story_type"])
	assert.Equal(t, float64(0), meta["requested_node_index"])
}

func TestGetStoryFallback(t *testing.T) {
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, nil)

	// 710916 is no bug, but the fallback kinds are tried in order.
	w := doGet(r, "/api/v1/story/bugzillabug/710916?fallback=advisory&fallback=kojibuild")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["requested_node_index"])

	w = doGet(r, "/api/v1/story/bugzillabug/710916?fallback=flatpak")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Exhausted fallbacks surface the original lookup failure.
	w = doGet(r, "/api/v1/story/bugzillabug/999?fallback=advisory")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAllStories(t *testing.T) {
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/allstories/bugzillabug/12345")
	require.Equal(t, http.StatusOK, w.Code)

	var stories []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stories))
	require.Len(t, stories, 1)
	assert.Len(t, stories[0]["data"], 3)
}

func TestGetSiblings(t *testing.T) {
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/siblings/distgitcommit/8a63adb248ba?backward_rel=true")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, "Bugs resolved by commit #8a63adb", meta["description"])

	// The first stage has no backward arrow.
	w = doGet(r, "/api/v1/siblings/bugzillabug/12345?backward_rel=true")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(r, "/api/v1/siblings/bugzillabug/12345?backward_rel=maybe")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doGet(r, "/api/v1/siblings/bugzillabug/12345?story_type=flatpak")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecents(t *testing.T) {
	s := graphtest.New()
	s.AddNode([]string{models.LabelBugzillaBug}, map[string]interface{}{
		"id": "1", "modified_time": time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/recents")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)

	data := body["data"].(map[string]interface{})
	assert.Len(t, data[models.LabelBugzillaBug], 1)
	meta := body["meta"].(map[string]interface{})
	idKeys := meta["id_keys"].(map[string]interface{})
	assert.Equal(t, "id", idKeys[models.LabelBugzillaBug])
}

func TestHealthcheck(t *testing.T) {
	s := graphtest.New()
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/healthcheck")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Health check OK", w.Body.String())

	s.FailPing = true
	w = doGet(r, "/api/v1/healthcheck")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "The database connection failed", w.Body.String())
}

func TestMonitoring(t *testing.T) {
	r := newTestRouter(t, graphtest.New(), nil)
	w := doGet(r, "/api/v1/monitoring")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, true, body["neo4j"])
	assert.Equal(t, false, body["redis"])
}

func TestStoreUnavailable(t *testing.T) {
	s := graphtest.New()
	s.FailAll = true
	r := newTestRouter(t, s, nil)

	w := doGet(r, "/api/v1/bugzillabug/12345")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, float64(http.StatusServiceUnavailable), body["status"])
	assert.Equal(t, "The database connection failed", body["message"])
}

func TestAuthRequired(t *testing.T) {
	const secret = "test-secret"
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.Secret = secret
	})

	// The open routes stay open.
	w := doGet(r, "/api/v1/about")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["auth_required"])

	w = doGet(r, "/api/v1/bugzillabug/12345")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doGet(r, "/api/v1/bugzillabug/12345", map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{Username: "jdoe"})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	w = doGet(r, "/api/v1/bugzillabug/12345", map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSAllowlist(t *testing.T) {
	s := graphtest.New()
	seedStory(s)
	r := newTestRouter(t, s, func(cfg *config.Config) {
		cfg.CORSAllowlist = []string{"https://ui.example.com"}
	})

	w := doGet(r, "/api/v1/bugzillabug/12345", map[string]string{"Origin": "https://ui.example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://ui.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
