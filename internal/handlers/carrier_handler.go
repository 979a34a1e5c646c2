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

// validateFormulas rejects products whose rate or comp expressions do not
// parse; catching this at write time keeps payroll and quoting from failing
// later on bad data.
func validateFormulas(p *models.Product) error {
	if p.RateFormula != "" {
		if _, err := govaluate.NewEvaluableExpression(p.RateFormula); err != nil {
			return errors.New("invalid rate formula: " + err.Error())
		}
	}
	for level, expr := range p.CompGrid {
		if _, err := govaluate.NewEvaluableExpression(expr); err != nil {
			return errors.New("invalid comp formula for level " + level + ": " + err.Error())
		}
	}
	return nil
}

// ListCarriersHandler returns all carriers; pass all=true to skip pagination.
func ListCarriersHandler(c *gin.Context) {
	var carriers []models.Carrier
	query := config.DB.Order("name asc")

	if c.Query("all") == "true" {
		if err := query.Find(&carriers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch carriers"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": carriers})
		return
	}

	var totalRows int64
	config.DB.Model(&models.Carrier{}).Count(&totalRows)
	if err := query.Scopes(Paginate(c)).Find(&carriers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch carriers"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, carriers, totalRows))
}

// CreateCarrierHandler adds a carrier.
func CreateCarrierHandler(c *gin.Context) {
	var carrier models.Carrier
	if err := c.ShouldBindJSON(&carrier); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if carrier.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Carrier name is required"})
		return
	}
	if err := config.DB.Create(&carrier).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create carrier"})
		return
	}
	c.JSON(http.StatusCreated, carrier)
}

// GetCarrierHandler returns a carrier with its products.
func GetCarrierHandler(c *gin.Context) {
	var carrier models.Carrier
	if err := config.DB.Preload("Products").First(&carrier, c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Carrier not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, carrier)
}

// UpdateCarrierHandler edits a carrier.
func UpdateCarrierHandler(c *gin.Context) {
	var carrier models.Carrier
	if err := config.DB.First(&carrier, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Carrier not found"})
		return
	}

	var input models.Carrier
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := config.DB.Model(&carrier).Updates(input).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update carrier"})
		return
	}
	c.JSON(http.StatusOK, carrier)
}

// DeleteCarrierHandler soft-deletes a carrier and its products.
func DeleteCarrierHandler(c *gin.Context) {
	id := c.Param("id")
	if err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("carrier_id = ?", id).Delete(&models.Product{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Carrier{}, id).Error
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete carrier"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Carrier deleted"})
}

// ListProductsHandler returns a carrier's products.
func ListProductsHandler(c *gin.Context) {
	var products []models.Product
	if err := config.DB.Where("carrier_id = ?", c.Param("id")).Order("name asc").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

// CreateProductHandler adds a product under a carrier.
func CreateProductHandler(c *gin.Context) {
	var carrier models.Carrier
	if err := config.DB.First(&carrier, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Carrier not found"})
		return
	}

	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product.CarrierID = carrier.ID
	if product.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product name is required"})
		return
	}
	if err := validateFormulas(&product); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := config.DB.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
		return
	}
	c.JSON(http.StatusCreated, product)
}

// UpdateProductHandler edits a product, re-validating its formulas.
func UpdateProductHandler(c *gin.Context) {
	var product models.Product
	if err := config.DB.First(&product, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	var input models.Product
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateFormulas(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{
		"name":         input.Name,
		"line":         input.Line,
		"rate_formula": input.RateFormula,
		"comp_grid":    input.CompGrid,
	}
	if err := config.DB.Model(&product).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProductHandler soft-deletes a product.
func DeleteProductHandler(c *gin.Context) {
	if err := config.DB.Delete(&models.Product{}, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
