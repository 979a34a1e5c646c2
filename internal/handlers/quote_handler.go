package handlers

import (
	"errors"
	"net/http"

	"agentspace/config"
	"agentspace/models"

	"github.com/Knetic/govaluate"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type quoteInput struct {
	ClientID   *uint   `json:"clientId"`
	CarrierID  uint    `json:"carrierId"`
	ProductID  uint    `json:"productId" binding:"required"`
	Age        int     `json:"age" binding:"required"`
	FaceAmount float64 `json:"faceAmount" binding:"required"`
	TobaccoUse bool    `json:"tobaccoUse"`
	Notes      string  `json:"notes"`
}

// priceQuote evaluates a product's rate formula against quote inputs and
// returns the monthly premium. Formula variables: age, faceAmount, tobacco
// (0 or 1).
func priceQuote(product *models.Product, age int, faceAmount float64, tobacco bool) (float64, error) {
	if product.RateFormula == "" {
		return 0, errors.New("product has no rate formula")
	}
	expression, err := govaluate.NewEvaluableExpression(product.RateFormula)
	if err != nil {
		return 0, err
	}

	tobaccoVal := 0.0
	if tobacco {
		tobaccoVal = 1.0
	}
	result, err := expression.Evaluate(map[string]interface{}{
		"age":        float64(age),
		"faceAmount": faceAmount,
		"tobacco":    tobaccoVal,
	})
	if err != nil {
		return 0, err
	}
	premium, ok := result.(float64)
	if !ok {
		return 0, errors.New("rate formula did not produce a number")
	}
	if premium < 0 {
		return 0, errors.New("rate formula produced a negative premium")
	}
	return premium, nil
}

// PriceQuoteHandler computes a premium without persisting anything; used by
// the proposal screen while the agent adjusts inputs.
func PriceQuoteHandler(c *gin.Context) {
	var input quoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product models.Product
	if err := config.DB.First(&product, input.ProductID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	monthly, err := priceQuote(&product, input.Age, input.FaceAmount, input.TobaccoUse)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"monthlyPremium": monthly,
		"annualPremium":  monthly * 12,
	})
}

// CreateQuoteHandler prices and stores a quote for the current agent.
func CreateQuoteHandler(c *gin.Context) {
	var input quoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var product models.Product
	if err := config.DB.First(&product, input.ProductID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	monthly, err := priceQuote(&product, input.Age, input.FaceAmount, input.TobaccoUse)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	userIDVal, _ := c.Get("user_id")
	quote := models.Quote{
		AgentID:        userIDVal.(uint),
		ClientID:       input.ClientID,
		CarrierID:      product.CarrierID,
		ProductID:      product.ID,
		Status:         models.QuoteStatusDraft,
		Age:            input.Age,
		FaceAmount:     input.FaceAmount,
		TobaccoUse:     input.TobaccoUse,
		MonthlyPremium: monthly,
		AnnualPremium:  monthly * 12,
		Notes:          input.Notes,
		Inputs: models.JSONMap{
			"age":        input.Age,
			"faceAmount": input.FaceAmount,
			"tobacco":    input.TobaccoUse,
		},
	}

	if err := config.DB.Create(&quote).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save quote"})
		return
	}
	c.JSON(http.StatusCreated, quote)
}

// quoteScope restricts a query to the caller's own quotes unless they hold
// quotes_view_all. Applied to reads and writes alike.
func quoteScope(c *gin.Context) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if hasContextPermission(c, "quotes_view_all") {
			return db
		}
		userID, _ := c.Get("user_id")
		return db.Where("agent_id = ?", userID)
	}
}

// ListQuotesHandler returns the current agent's quotes (or all of them for
// users with the quotes_view_all permission).
func ListQuotesHandler(c *gin.Context) {
	var quotes []models.Quote
	var totalRows int64

	query := config.DB.Model(&models.Quote{}).
		Preload("Client").Preload("Carrier").Preload("Product").Order("created_at desc").
		Scopes(quoteScope(c))

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count quotes"})
		return
	}
	if err := query.Scopes(Paginate(c)).Find(&quotes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quotes"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, quotes, totalRows))
}

// GetQuoteHandler returns a single quote.
func GetQuoteHandler(c *gin.Context) {
	var quote models.Quote
	err := config.DB.Preload("Client").Preload("Carrier").Preload("Product").
		Scopes(quoteScope(c)).First(&quote, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// UpdateQuoteHandler edits quote inputs, re-pricing when they change, or just
// moves the status along.
func UpdateQuoteHandler(c *gin.Context) {
	var quote models.Quote
	if err := config.DB.Scopes(quoteScope(c)).First(&quote, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		return
	}

	var body struct {
		quoteInput
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if body.Age != 0 {
		quote.Age = body.Age
	}
	if body.FaceAmount != 0 {
		quote.FaceAmount = body.FaceAmount
	}
	quote.TobaccoUse = body.TobaccoUse
	if body.Notes != "" {
		quote.Notes = body.Notes
	}
	if body.Status != "" {
		quote.Status = body.Status
	}

	var product models.Product
	if err := config.DB.First(&product, quote.ProductID).Error; err == nil {
		if monthly, err := priceQuote(&product, quote.Age, quote.FaceAmount, quote.TobaccoUse); err == nil {
			quote.MonthlyPremium = monthly
			quote.AnnualPremium = monthly * 12
		}
	}

	if err := config.DB.Save(&quote).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update quote"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// DeleteQuoteHandler soft-deletes a quote.
func DeleteQuoteHandler(c *gin.Context) {
	var quote models.Quote
	if err := config.DB.Scopes(quoteScope(c)).First(&quote, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quote not found"})
		return
	}
	if err := config.DB.Delete(&quote).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete quote"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quote deleted"})
}
