package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Run("parses level", func(t *testing.T) {
		log := NewLogger("debug")
		assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		log := NewLogger("shouting")
		assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	})
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics()

	router := mux.NewRouter()
	router.Use(m.Middleware)
	router.HandleFunc("/orgs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/orgs/o1", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "orgbase_http_requests_total")
	// Route template, not the raw path with its ID.
	assert.Contains(t, body, `path="/orgs/{id}"`)
	assert.Contains(t, body, `status="404"`)
	assert.False(t, strings.Contains(body, `path="/orgs/o1"`))
}

func TestHealthChecker(t *testing.T) {
	t.Run("liveness is always healthy", func(t *testing.T) {
		checker := NewHealthChecker(nil)
		rec := httptest.NewRecorder()
		checker.Liveness(rec, httptest.NewRequest("GET", "/health/live", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), StatusHealthy)
	})

	t.Run("readiness pings the database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing()

		checker := NewHealthChecker(db)
		rec := httptest.NewRecorder()
		checker.Readiness(rec, httptest.NewRequest("GET", "/health/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"database"`)
	})

	t.Run("readiness reports an unreachable database", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPing().WillReturnError(assert.AnError)

		checker := NewHealthChecker(db)
		rec := httptest.NewRecorder()
		checker.Readiness(rec, httptest.NewRequest("GET", "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestSampleDBPool(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewMetrics()
	m.SampleDBPool(db)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "orgbase_db_connections_active")
	assert.Contains(t, body, "orgbase_db_connections_idle")
}

func TestPollDBPoolStops(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewMetrics()
	stop := m.PollDBPool(db, time.Hour)
	stop()
}
