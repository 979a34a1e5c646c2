package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"os"
	"time"

	"agentspace/config"
	"agentspace/models"

	"github.com/gin-gonic/gin"
)

// CarrierRemittanceInput is the payload carriers (or the bank integration)
// POST when a commission deposit clears.
type CarrierRemittanceInput struct {
	CarrierName  string  `json:"carrierName" binding:"required"`
	Amount       float64 `json:"amount" binding:"required"`
	DepositDate  string  `json:"depositDate" binding:"required"` // YYYY-MM-DD
	RemittanceID string  `json:"remittanceId"`
}

// CarrierRemittanceWebhookHandler matches an incoming deposit to the most
// recent parsed, un-remitted statement from that carrier and marks it
// remitted. Amount mismatches are recorded but do not reject the deposit.
func CarrierRemittanceWebhookHandler(c *gin.Context) {
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Webhook is not configured"})
		return
	}
	provided := c.GetHeader("X-Webhook-Secret")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret"})
		return
	}

	var input CarrierRemittanceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	depositTime, err := time.Parse("2006-01-02", input.DepositDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format, expected YYYY-MM-DD"})
		return
	}

	var carrier models.Carrier
	if err := config.DB.Where("name = ?", input.CarrierName).First(&carrier).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown carrier"})
		return
	}

	// Idempotency on the remittance id: replaying a webhook is a no-op.
	if input.RemittanceID != "" {
		var existing models.CommissionReport
		if err := config.DB.Where("remittance_id = ?", input.RemittanceID).First(&existing).Error; err == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Remittance already recorded", "reportId": existing.ID})
			return
		}
	}

	var report models.CommissionReport
	err = config.DB.Where("carrier_id = ? AND status = ? AND remitted_at IS NULL",
		carrier.ID, models.ReportStatusParsed).
		Order("created_at desc").First(&report).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No open statement found for this carrier"})
		return
	}

	if report.TotalAmount != 0 && input.Amount != report.TotalAmount {
		slog.Warn("remittance amount differs from statement total",
			"report_id", report.ID, "statement_total", report.TotalAmount, "deposit", input.Amount)
	}

	if err := config.DB.Model(&report).Updates(map[string]interface{}{
		"remittance_id":   input.RemittanceID,
		"remitted_amount": input.Amount,
		"remitted_at":     depositTime,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record remittance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Remittance recorded", "reportId": report.ID})
}
