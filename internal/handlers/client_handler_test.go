package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"agentspace/models"

	"github.com/gin-gonic/gin"
)

func clientRouter(userID uint, perms ...string) *gin.Engine {
	r := authedRouter(userID, perms...)
	clients := r.Group("/api/clients")
	clients.GET("/:id", GetClientHandler)
	clients.PUT("/:id", UpdateClientHandler)
	clients.DELETE("/:id", DeleteClientHandler)
	return r
}

func TestClientHandlersScopedToOwner(t *testing.T) {
	db := useTestDB(t)

	client := models.Client{FirstName: "Ann", LastName: "Lee", AgentID: 1, State: "TX"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	path := fmt.Sprintf("/api/clients/%d", client.ID)

	other := clientRouter(2)
	if w := doJSON(t, other, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("other agent GET status = %d, want 404", w.Code)
	}
	if w := doJSON(t, other, http.MethodPut, path, gin.H{"firstName": "Mallory"}); w.Code != http.StatusNotFound {
		t.Errorf("other agent PUT status = %d, want 404", w.Code)
	}
	if w := doJSON(t, other, http.MethodDelete, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("other agent DELETE status = %d, want 404", w.Code)
	}

	var kept models.Client
	if err := db.First(&kept, client.ID).Error; err != nil {
		t.Fatalf("client disappeared: %v", err)
	}
	if kept.FirstName != "Ann" {
		t.Errorf("client edited by another agent: %+v", kept)
	}

	if w := doJSON(t, clientRouter(2, "clients_view_all"), http.MethodGet, path, nil); w.Code != http.StatusOK {
		t.Errorf("viewer GET status = %d, want 200", w.Code)
	}

	owner := clientRouter(1)
	if w := doJSON(t, owner, http.MethodPut, path, gin.H{"firstName": "Anna"}); w.Code != http.StatusOK {
		t.Errorf("owner PUT status = %d, want 200", w.Code)
	}
	if w := doJSON(t, owner, http.MethodDelete, path, nil); w.Code != http.StatusOK {
		t.Errorf("owner DELETE status = %d, want 200", w.Code)
	}
}
