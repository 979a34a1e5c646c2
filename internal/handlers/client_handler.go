package handlers

import (
	"errors"
	"net/http"
	"strings"

	"agentspace/config"
	"agentspace/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// clientScope restricts a query to the caller's own clients unless they hold
// clients_view_all. Single-record handlers use it too, so agents cannot read
// or edit another agent's book by id.
func clientScope(c *gin.Context) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if hasContextPermission(c, "clients_view_all") {
			return db
		}
		userID, _ := c.Get("user_id")
		return db.Where("agent_id = ?", userID)
	}
}

// ListClientsHandler returns a paginated, searchable list of policy holders.
func ListClientsHandler(c *gin.Context) {
	var clients []models.Client
	var totalRows int64

	query := config.DB.Model(&models.Client{}).Preload("Agent").
		Order("last_name asc, first_name asc").Scopes(clientScope(c))

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(`LOWER(last_name) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?`,
			pattern, pattern, pattern, pattern)
	}
	if state := c.Query("state"); state != "" {
		query = query.Where("state = ?", strings.ToUpper(state))
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count clients"})
		return
	}
	if err := query.Scopes(Paginate(c)).Find(&clients).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch clients"})
		return
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, clients, totalRows))
}

// CreateClientHandler adds a policy holder owned by the current agent.
func CreateClientHandler(c *gin.Context) {
	var client models.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if client.FirstName == "" || client.LastName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "First and last name are required"})
		return
	}

	if client.AgentID == 0 {
		userIDVal, _ := c.Get("user_id")
		client.AgentID = userIDVal.(uint)
	}
	client.State = strings.ToUpper(client.State)

	if err := config.DB.Create(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create client"})
		return
	}
	c.JSON(http.StatusCreated, client)
}

// GetClientHandler returns one client with their deals.
func GetClientHandler(c *gin.Context) {
	var client models.Client
	if err := config.DB.Preload("Agent").Scopes(clientScope(c)).
		First(&client, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	var deals []models.Deal
	config.DB.Preload("Carrier").Preload("Product").
		Where("client_id = ?", client.ID).Order("created_at desc").Find(&deals)

	c.JSON(http.StatusOK, gin.H{"client": client, "deals": deals})
}

// UpdateClientHandler edits a client record.
func UpdateClientHandler(c *gin.Context) {
	var client models.Client
	if err := config.DB.Scopes(clientScope(c)).First(&client, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	var input models.Client
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.State = strings.ToUpper(input.State)

	if err := config.DB.Model(&client).Updates(input).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update client"})
		return
	}
	c.JSON(http.StatusOK, client)
}

// DeleteClientHandler soft-deletes a client without deals.
func DeleteClientHandler(c *gin.Context) {
	var client models.Client
	if err := config.DB.Scopes(clientScope(c)).First(&client, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}

	var dealCount int64
	config.DB.Model(&models.Deal{}).Where("client_id = ?", client.ID).Count(&dealCount)
	if dealCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Client has deals and cannot be deleted"})
		return
	}

	if err := config.DB.Delete(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete client"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted"})
}
