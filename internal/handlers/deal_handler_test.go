package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"agentspace/models"

	"github.com/gin-gonic/gin"
)

func TestDealTransitionAllowed(t *testing.T) {
	allowed := []struct{ from, to string }{
		{models.DealStatusDraft, models.DealStatusSubmitted},
		{models.DealStatusDraft, models.DealStatusCancelled},
		{models.DealStatusSubmitted, models.DealStatusActive},
		{models.DealStatusSubmitted, models.DealStatusDeclined},
		{models.DealStatusActive, models.DealStatusLapsed},
		{models.DealStatusLapsed, models.DealStatusActive},
	}
	for _, tt := range allowed {
		if !dealTransitionAllowed(tt.from, tt.to) {
			t.Errorf("%s -> %s should be allowed", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to string }{
		{models.DealStatusDraft, models.DealStatusActive},
		{models.DealStatusActive, models.DealStatusDraft},
		{models.DealStatusCancelled, models.DealStatusActive},
		{models.DealStatusDeclined, models.DealStatusSubmitted},
		{models.DealStatusActive, models.DealStatusActive},
		{"bogus", models.DealStatusActive},
	}
	for _, tt := range denied {
		if dealTransitionAllowed(tt.from, tt.to) {
			t.Errorf("%s -> %s should be rejected", tt.from, tt.to)
		}
	}
}

func dealRouter(userID uint, perms ...string) *gin.Engine {
	r := authedRouter(userID, perms...)
	deals := r.Group("/api/deals")
	deals.GET("/:id", GetDealHandler)
	deals.PUT("/:id", UpdateDealHandler)
	deals.POST("/:id/status", ChangeDealStatusHandler)
	deals.DELETE("/:id", DeleteDealHandler)
	return r
}

func TestDealWritesScopedToOwner(t *testing.T) {
	db := useTestDB(t)

	deal := models.Deal{
		PolicyNumber:  "POL-1",
		Status:        models.DealStatusDraft,
		AgentID:       1,
		ClientID:      1,
		CarrierID:     1,
		ProductID:     1,
		AnnualPremium: 900,
		Notes:         "original",
	}
	if err := db.Create(&deal).Error; err != nil {
		t.Fatalf("create deal: %v", err)
	}
	path := fmt.Sprintf("/api/deals/%d", deal.ID)
	update := gin.H{"clientId": 1, "carrierId": 1, "productId": 1, "annualPremium": 9, "notes": "changed"}

	// Another agent without the book-wide permission cannot see or touch it.
	other := dealRouter(2)
	if w := doJSON(t, other, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("other agent GET status = %d, want 404", w.Code)
	}
	if w := doJSON(t, other, http.MethodPut, path, update); w.Code != http.StatusNotFound {
		t.Errorf("other agent PUT status = %d, want 404", w.Code)
	}
	if w := doJSON(t, other, http.MethodPost, path+"/status", gin.H{"status": models.DealStatusSubmitted}); w.Code != http.StatusNotFound {
		t.Errorf("other agent status change = %d, want 404", w.Code)
	}
	if w := doJSON(t, other, http.MethodDelete, path, nil); w.Code != http.StatusNotFound {
		t.Errorf("other agent DELETE status = %d, want 404", w.Code)
	}

	var kept models.Deal
	if err := db.First(&kept, deal.ID).Error; err != nil {
		t.Fatalf("deal disappeared: %v", err)
	}
	if kept.Notes != "original" || kept.Status != models.DealStatusDraft || kept.AnnualPremium != 900 {
		t.Errorf("deal changed by another agent: %+v", kept)
	}

	// The owner can edit and transition their own deal.
	owner := dealRouter(1)
	if w := doJSON(t, owner, http.MethodPut, path, update); w.Code != http.StatusOK {
		t.Errorf("owner PUT status = %d, want 200", w.Code)
	}
	if w := doJSON(t, owner, http.MethodPost, path+"/status", gin.H{"status": models.DealStatusSubmitted}); w.Code != http.StatusOK {
		t.Errorf("owner status change = %d, want 200", w.Code)
	}

	// The book-wide permission unlocks other agents' deals.
	manager := dealRouter(2, "deals_view_all")
	if w := doJSON(t, manager, http.MethodGet, path, nil); w.Code != http.StatusOK {
		t.Errorf("manager GET status = %d, want 200", w.Code)
	}
}
