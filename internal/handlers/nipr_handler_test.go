package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"agentspace/models"

	"github.com/gin-gonic/gin"
)

func verificationRouter(userID uint, perms ...string) *gin.Engine {
	r := authedRouter(userID, perms...)
	grp := r.Group("/api/nipr/verifications")
	grp.POST("", SubmitVerificationHandler)
	grp.GET("/active", GetActiveVerificationHandler)
	grp.GET("/:id", GetVerificationHandler)
	return r
}

func TestSubmitVerification(t *testing.T) {
	useTestDB(t)
	r := verificationRouter(1)

	w := doJSON(t, r, http.MethodPost, "/api/nipr/verifications",
		gin.H{"npn": "12345678", "lastName": "Smith", "ssnLast4": "1234"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeBody(t, w)
	if resp["status"] != models.VerificationStatusQueued {
		t.Errorf("job status = %v, want queued", resp["status"])
	}
	if pos, _ := resp["queuePosition"].(float64); pos != 1 {
		t.Errorf("queuePosition = %v, want 1", resp["queuePosition"])
	}
	jobID, _ := resp["jobId"].(string)
	if jobID == "" {
		t.Fatal("response has no job id")
	}

	if _, err := VerificationQueue.Get(context.Background(), jobID); err != nil {
		t.Errorf("job %s not persisted: %v", jobID, err)
	}
}

func TestSubmitVerificationValidation(t *testing.T) {
	useTestDB(t)
	r := verificationRouter(1)

	tests := []struct {
		name string
		body gin.H
	}{
		{"alpha NPN", gin.H{"npn": "12a45", "lastName": "Smith", "ssnLast4": "1234"}},
		{"short SSN", gin.H{"npn": "12345", "lastName": "Smith", "ssnLast4": "123"}},
		{"non-digit SSN", gin.H{"npn": "12345", "lastName": "Smith", "ssnLast4": "12ab"}},
		{"missing last name", gin.H{"npn": "12345", "ssnLast4": "1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/nipr/verifications", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestSubmitVerificationConflict(t *testing.T) {
	useTestDB(t)
	r := verificationRouter(1)
	body := gin.H{"npn": "12345678", "lastName": "Smith", "ssnLast4": "1234"}

	first := decodeBody(t, doJSON(t, r, http.MethodPost, "/api/nipr/verifications", body))

	w := doJSON(t, r, http.MethodPost, "/api/nipr/verifications", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("second submit status = %d, want 409", w.Code)
	}
	resp := decodeBody(t, w)
	job, ok := resp["job"].(map[string]interface{})
	if !ok {
		t.Fatalf("conflict response has no job: %s", w.Body.String())
	}
	if job["jobId"] != first["jobId"] {
		t.Errorf("conflict returned job %v, want the in-flight job %v", job["jobId"], first["jobId"])
	}
}

func TestActiveVerificationRecovery(t *testing.T) {
	useTestDB(t)
	r := verificationRouter(1)

	if w := doJSON(t, r, http.MethodGet, "/api/nipr/verifications/active", nil); w.Code != http.StatusNoContent {
		t.Fatalf("active with no job status = %d, want 204", w.Code)
	}

	submitted := decodeBody(t, doJSON(t, r, http.MethodPost, "/api/nipr/verifications",
		gin.H{"npn": "12345678", "lastName": "Smith", "ssnLast4": "1234"}))

	w := doJSON(t, r, http.MethodGet, "/api/nipr/verifications/active", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("active status = %d, want 200", w.Code)
	}
	active := decodeBody(t, w)
	if active["jobId"] != submitted["jobId"] {
		t.Errorf("active job = %v, want %v", active["jobId"], submitted["jobId"])
	}
}

func TestGetVerificationScopedToOwner(t *testing.T) {
	useTestDB(t)
	ctx := context.Background()

	job := models.VerificationJob{
		UserID:   1,
		Kind:     models.VerificationKindAutomated,
		NPN:      "12345678",
		LastName: "Smith",
		SSNLast4: "1234",
	}
	if err := VerificationQueue.Enqueue(ctx, &job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	path := fmt.Sprintf("/api/nipr/verifications/%s", job.ID)

	if w := doJSON(t, verificationRouter(1), http.MethodGet, path, nil); w.Code != http.StatusOK {
		t.Errorf("owner poll status = %d, want 200", w.Code)
	}
	if w := doJSON(t, verificationRouter(2), http.MethodGet, path, nil); w.Code != http.StatusForbidden {
		t.Errorf("other agent poll status = %d, want 403", w.Code)
	}
	if w := doJSON(t, verificationRouter(2, "verifications_view_all"), http.MethodGet, path, nil); w.Code != http.StatusOK {
		t.Errorf("licensing team poll status = %d, want 200", w.Code)
	}
}
