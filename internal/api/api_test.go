package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/category"
	"github.com/glefebvre/guidepost/internal/config"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/metrics"
	"github.com/glefebvre/guidepost/internal/models"
	"github.com/glefebvre/guidepost/internal/store"
	testutil "github.com/glefebvre/guidepost/internal/testing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, cfg config.APIConfig) (*Server, *gorm.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	return NewServer(db, cfg, metrics.New(prometheus.NewRegistry()), logger.Discard()), db
}

func get(t *testing.T, s *Server, path string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{})

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(t, s, "/health", "X-Request-ID", "abc-123")
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestHealth_NoDatabase(t *testing.T) {
	s := NewServer(nil, config.APIConfig{}, metrics.New(prometheus.NewRegistry()), logger.Discard())
	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListChannels(t *testing.T) {
	s, db := newTestServer(t, config.APIConfig{})
	for _, name := range []string{"Charlie", "Alpha", "Bravo"} {
		testutil.CreateChannel(db, testutil.WithName(name), testutil.WithExternalID(strings.ToLower(name)+".example"))
	}

	rec := get(t, s, "/api/v1/channels?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data       []ChannelResponse `json:"data"`
		Total      int64             `json:"total"`
		TotalPages int               `json:"total_pages"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, int64(3), resp.Total)
	assert.Equal(t, 2, resp.TotalPages)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Alpha", resp.Data[0].Name)
	assert.Equal(t, "Bravo", resp.Data[1].Name)

	rec = get(t, s, "/api/v1/channels?limit=2&offset=2")
	decode(t, rec, &resp)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Charlie", resp.Data[0].Name)
}

func TestListChannels_BadPagination(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{})

	for _, q := range []string{"limit=0", "limit=abc", "offset=-1"} {
		rec := get(t, s, "/api/v1/channels?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetChannel(t *testing.T) {
	s, db := newTestServer(t, config.APIConfig{})
	ch := testutil.CreateChannel(db, testutil.WithName("One"))

	rec := get(t, s, fmt.Sprintf("/api/v1/channels/%d", ch.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChannelResponse
	decode(t, rec, &resp)
	assert.Equal(t, "One", resp.Name)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/v1/channels/9999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/v1/channels/abc").Code)
}

func TestGetSchedule(t *testing.T) {
	s, db := newTestServer(t, config.APIConfig{})
	ch := testutil.CreateChannel(db)
	base := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	for i, title := range []string{"News", "Weather", "Film"} {
		testutil.CreateEntry(db, ch, base.Add(time.Duration(i)*30*time.Minute), testutil.WithEventName(title),
			func(e *models.ScheduleEntry) {
				if title == "Film" {
					e.EpisodeScheme = "dd_progid"
					e.ProgramPrefix = "MV"
					e.SeriesID = "00001234"
					e.Kind = "movie"
				}
			})
	}
	path := fmt.Sprintf("/api/v1/channels/%d/schedule", ch.ID)

	t.Run("all", func(t *testing.T) {
		rec := get(t, s, path)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ScheduleResponse
		decode(t, rec, &resp)
		require.Len(t, resp.Entries, 3)
		assert.Equal(t, "2024-06-01T18:00:00Z", resp.Entries[0].Start)
		assert.Equal(t, "2024-06-01T18:30:00Z", resp.Entries[0].End)
		assert.Nil(t, resp.Entries[0].Episode)
		require.NotNil(t, resp.Entries[2].Episode)
		assert.Equal(t, "MV", resp.Entries[2].Episode.Prefix)
		assert.Equal(t, "movie", resp.Entries[2].Kind)
	})

	t.Run("window", func(t *testing.T) {
		rec := get(t, s, path+"?from=2024-06-01T18:45:00Z&to=2024-06-01T19:00:00Z")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ScheduleResponse
		decode(t, rec, &resp)
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, "Weather", resp.Entries[0].EventName)
		assert.Equal(t, "2024-06-01T18:45:00Z", resp.From)
	})

	t.Run("invalid bounds", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, s, path+"?from=yesterday").Code)
		assert.Equal(t, http.StatusBadRequest, get(t, s, path+"?from=2024-06-02T00:00:00Z&to=2024-06-01T00:00:00Z").Code)
	})
}

func TestCategories(t *testing.T) {
	s, db := newTestServer(t, config.APIConfig{})

	table := category.NewTable([]category.Record{
		{Tag: "Drama", Usage: 2, Descriptions: map[string]string{"wmc": "Drama"}},
		{Tag: "News", Usage: 7},
	}, nil, []category.Undefined{{Tag: "Quiz", Sample: "Pointless"}})
	require.NoError(t, store.NewCategoryStore(db).Save(table))

	rec := get(t, s, "/api/v1/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	var cats struct {
		Categories []CategoryResponse `json:"categories"`
	}
	decode(t, rec, &cats)
	require.Len(t, cats.Categories, 2)
	assert.Equal(t, "News", cats.Categories[0].Tag)
	assert.Equal(t, "Drama", cats.Categories[1].Descriptions["wmc"])

	rec = get(t, s, "/api/v1/categories/undefined")
	require.Equal(t, http.StatusOK, rec.Code)
	var undefined struct {
		Undefined []UndefinedResponse `json:"undefined"`
	}
	decode(t, rec, &undefined)
	require.Len(t, undefined.Undefined, 1)
	assert.Equal(t, "Pointless", undefined.Undefined[0].Sample)
}

func TestListRuns(t *testing.T) {
	s, db := newTestServer(t, config.APIConfig{})
	runs := store.NewRunStore(db)

	run, err := runs.Start("run-a", "guide.xml", false)
	require.NoError(t, err)
	require.NoError(t, runs.Finish(run, 2, 10, map[string]int{"programmes_created": 10}, nil))

	rec := get(t, s, "/api/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Runs []RunResponse `json:"runs"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "success", resp.Runs[0].Status)
	assert.Equal(t, 10, resp.Runs[0].Summary["programmes_created"])
	assert.NotEmpty(t, resp.Runs[0].CompletedAt)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{})
	get(t, s, "/health")
	get(t, s, "/does-not-exist")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `guidepost_http_requests_total{method="GET",path="/health",status="200"} 1`)
	assert.Contains(t, string(body), `path="unmatched",status="404"`)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{CORSOrigins: []string{"http://guide.example"}})

	rec := get(t, s, "/health", "Origin", "http://guide.example")
	assert.Equal(t, "http://guide.example", rec.Header().Get("Access-Control-Allow-Origin"))

	s, _ = newTestServer(t, config.APIConfig{})
	rec = get(t, s, "/health", "Origin", "http://guide.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
