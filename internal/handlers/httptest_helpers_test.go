package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"agentspace/config"
	"agentspace/internal/nipr"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// useTestDB points the package-level handles at an in-memory database for the
// duration of one test.
func useTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := newTestDB(t)
	prevDB := config.DB
	prevQueue := VerificationQueue
	config.DB = db
	VerificationQueue = nipr.NewQueue(db)
	if err := VerificationQueue.EnsureIndexes(); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	t.Cleanup(func() {
		config.DB = prevDB
		VerificationQueue = prevQueue
	})
	return db
}

// authedRouter builds a router whose requests run as the given user with the
// given permissions, standing in for the auth middleware.
func authedRouter(userID uint, perms ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("login", "test-agent")
		c.Set("roles", []string{"agent"})
		c.Set("permissions", perms)
	})
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return m
}
