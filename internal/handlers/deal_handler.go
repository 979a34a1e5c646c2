package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agentspace/config"
	"agentspace/models"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type dealInput struct {
	PolicyNumber  string  `json:"policyNumber"`
	ClientID      uint    `json:"clientId" binding:"required"`
	CarrierID     uint    `json:"carrierId" binding:"required"`
	ProductID     uint    `json:"productId" binding:"required"`
	AnnualPremium float64 `json:"annualPremium"`
	FaceAmount    float64 `json:"faceAmount"`
	EffectiveDate string  `json:"effectiveDate"`
	Notes         string  `json:"notes"`
}

var dealTransitions = map[string][]string{
	models.DealStatusDraft:     {models.DealStatusSubmitted, models.DealStatusCancelled},
	models.DealStatusSubmitted: {models.DealStatusActive, models.DealStatusDeclined, models.DealStatusCancelled},
	models.DealStatusActive:    {models.DealStatusLapsed, models.DealStatusCancelled},
	models.DealStatusLapsed:    {models.DealStatusActive},
}

func dealTransitionAllowed(from, to string) bool {
	for _, t := range dealTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// dealScope restricts a query to the caller's own deals unless they hold the
// book-wide permission. Every single-deal handler goes through it so an agent
// cannot touch another agent's production by id.
func dealScope(c *gin.Context) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if hasContextPermission(c, "deals_view_all") {
			return db
		}
		userID, _ := c.Get("user_id")
		return db.Where("deals.agent_id = ?", userID)
	}
}

func dealBaseQuery(c *gin.Context) *gorm.DB {
	query := config.DB.Model(&models.Deal{}).
		Preload("Client").Preload("Carrier").Preload("Product").Preload("Agent").
		Scopes(dealScope(c))

	if status := c.Query("status"); status != "" {
		query = query.Where("deals.status = ?", status)
	}
	if carrierID := c.Query("carrier_id"); carrierID != "" {
		query = query.Where("deals.carrier_id = ?", carrierID)
	}
	if agentID := c.Query("agent_id"); agentID != "" && hasContextPermission(c, "deals_view_all") {
		query = query.Where("deals.agent_id = ?", agentID)
	}
	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Joins("LEFT JOIN clients ON clients.id = deals.client_id").
			Where(`LOWER(deals.policy_number) LIKE ? OR
			       LOWER(clients.last_name) LIKE ? OR
			       LOWER(clients.first_name) LIKE ?`, pattern, pattern, pattern)
	}
	return query
}

func hasContextPermission(c *gin.Context, name string) bool {
	if rolesVal, ok := c.Get("roles"); ok {
		if roles, ok := rolesVal.([]string); ok {
			for _, r := range roles {
				if r == "admin" {
					return true
				}
			}
		}
	}
	permsVal, ok := c.Get("permissions")
	if !ok {
		return false
	}
	perms, ok := permsVal.([]string)
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == name {
			return true
		}
	}
	return false
}

// ListDealsHandler returns a page of the book of business using keyset-cursor
// pagination: `cursor` is an opaque token from the previous response,
// `limit` caps the page size.
func ListDealsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}

	query := dealBaseQuery(c).Order("deals.created_at DESC, deals.id DESC")

	if cursorStr := c.Query("cursor"); cursorStr != "" {
		cur, err := decodeDealCursor(cursorStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
			return
		}
		query = query.Where("(deals.created_at, deals.id) < (?, ?)", cur.CreatedAt, cur.ID)
	}

	var deals []models.Deal
	// Fetch one extra row to learn whether another page exists.
	if err := query.Limit(limit + 1).Find(&deals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch deals"})
		return
	}

	nextCursor := ""
	if len(deals) > limit {
		deals = deals[:limit]
		last := deals[len(deals)-1]
		nextCursor = encodeDealCursor(last.CreatedAt, last.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       deals,
		"nextCursor": nextCursor,
		"hasMore":    nextCursor != "",
	})
}

// CreateDealHandler records a new policy sale for the current agent.
func CreateDealHandler(c *gin.Context) {
	var input dealInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userIDVal, _ := c.Get("user_id")
	agentID := userIDVal.(uint)

	deal := models.Deal{
		PolicyNumber:  input.PolicyNumber,
		Status:        models.DealStatusDraft,
		AnnualPremium: input.AnnualPremium,
		FaceAmount:    input.FaceAmount,
		Notes:         input.Notes,
		AgentID:       agentID,
		ClientID:      input.ClientID,
		CarrierID:     input.CarrierID,
		ProductID:     input.ProductID,
	}
	if input.EffectiveDate != "" {
		t, err := time.Parse("2006-01-02", input.EffectiveDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid effective date, expected YYYY-MM-DD"})
			return
		}
		deal.EffectiveDate = &t
	}

	if err := config.DB.Create(&deal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create deal"})
		return
	}

	c.JSON(http.StatusCreated, deal)
}

// GetDealHandler returns a single deal with its associations.
func GetDealHandler(c *gin.Context) {
	var deal models.Deal
	err := dealBaseQuery(c).Where("deals.id = ?", c.Param("id")).First(&deal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, deal)
}

// UpdateDealHandler edits mutable deal fields. Status changes go through the
// dedicated transition endpoint.
func UpdateDealHandler(c *gin.Context) {
	var deal models.Deal
	if err := config.DB.Scopes(dealScope(c)).First(&deal, "deals.id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
		return
	}

	var input dealInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{
		"policy_number":  input.PolicyNumber,
		"annual_premium": input.AnnualPremium,
		"face_amount":    input.FaceAmount,
		"notes":          input.Notes,
		"client_id":      input.ClientID,
		"carrier_id":     input.CarrierID,
		"product_id":     input.ProductID,
	}
	if input.EffectiveDate != "" {
		t, err := time.Parse("2006-01-02", input.EffectiveDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid effective date, expected YYYY-MM-DD"})
			return
		}
		updates["effective_date"] = t
	}

	if err := config.DB.Model(&deal).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update deal"})
		return
	}
	c.JSON(http.StatusOK, deal)
}

// ChangeDealStatusHandler applies a status transition and records it in the
// deal's status history.
func ChangeDealStatusHandler(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Target status is required"})
		return
	}

	var deal models.Deal
	if err := config.DB.Scopes(dealScope(c)).First(&deal, "deals.id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
		return
	}

	if !dealTransitionAllowed(deal.Status, body.Status) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("Cannot move a deal from %s to %s", deal.Status, body.Status),
		})
		return
	}

	userIDVal, _ := c.Get("user_id")
	now := time.Now()
	deal.StatusHistory = append(deal.StatusHistory, models.StatusChange{
		From:      deal.Status,
		To:        body.Status,
		ChangedBy: userIDVal.(uint),
		ChangedAt: now,
	})
	deal.Status = body.Status
	if body.Status == models.DealStatusSubmitted && deal.SubmittedAt == nil {
		deal.SubmittedAt = &now
	}

	if err := config.DB.Save(&deal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update deal status"})
		return
	}
	c.JSON(http.StatusOK, deal)
}

// DeleteDealHandler soft-deletes a deal.
func DeleteDealHandler(c *gin.Context) {
	var deal models.Deal
	if err := config.DB.Scopes(dealScope(c)).First(&deal, "deals.id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Deal not found"})
		return
	}
	if err := config.DB.Delete(&deal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete deal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deal deleted"})
}

// ExportDealsHandler streams the filtered book of business as an XLSX file.
func ExportDealsHandler(c *gin.Context) {
	var deals []models.Deal
	if err := dealBaseQuery(c).Order("deals.created_at DESC").Find(&deals).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data for export"})
		return
	}

	f := excelize.NewFile()
	sheetName := "Book of Business"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Policy #", "Client", "Carrier", "Product", "Agent", "Status", "Annual Premium", "Face Amount", "Effective Date"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, d := range deals {
		row := i + 2
		clientName := ""
		if d.Client != nil {
			clientName = d.Client.LastName + " " + d.Client.FirstName
		}
		carrierName := ""
		if d.Carrier != nil {
			carrierName = d.Carrier.Name
		}
		productName := ""
		if d.Product != nil {
			productName = d.Product.Name
		}
		agentName := ""
		if d.Agent != nil {
			agentName = d.Agent.FullName
		}
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), d.PolicyNumber)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), clientName)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), carrierName)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), productName)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), agentName)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), d.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), d.AnnualPremium)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), d.FaceAmount)
		if d.EffectiveDate != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), d.EffectiveDate.Format("01/02/2006"))
		}
	}

	fileName := fmt.Sprintf("book_of_business_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
	}
}
