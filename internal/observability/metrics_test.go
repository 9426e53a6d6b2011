package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/users/login", http.MethodPost, http.StatusOK, time.Millisecond)
	m.RecordRequest("/api/users/login", http.MethodPost, http.StatusOK, time.Millisecond)
	m.RecordError("/api/users/login", http.MethodPost, "INVALID_CREDENTIALS")
	m.RecordAuthEvent("login_failed", "invalid_password")
	m.RecordAuthEvent("login_succeeded", "")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/users/login|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/users/login|POST|INVALID_CREDENTIALS"])
	assert.Equal(t, int64(1), snap.Auth["login_failed|invalid_password"])
	assert.Equal(t, int64(1), snap.Auth["login_succeeded"])

	// Snapshot is a copy.
	snap.Auth["login_succeeded"] = 99
	assert.Equal(t, int64(1), m.Snapshot().Auth["login_succeeded"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", http.MethodGet, http.StatusOK, 0)
	m.RecordError("/", http.MethodGet, "X")
	m.RecordAuthEvent("x", "")
	assert.Empty(t, m.Snapshot().Auth)
}
