package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"agentspace/config"
	"agentspace/models"

	"github.com/Knetic/govaluate"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type payrollRunInput struct {
	PeriodStart string `json:"periodStart" binding:"required"`
	PeriodEnd   string `json:"periodEnd" binding:"required"`
}

// compPercentFor resolves the commission percentage for one statement entry:
// the entry's policy leads to a deal, the deal's product carries the comp
// grid, and the agent's comp level selects the formula. Entries that cannot
// be resolved pay out at 100% of the carrier commission.
func compPercentFor(tx *gorm.DB, entry models.CommissionEntry, agent models.User, cache map[uint]*models.Product) (float64, error) {
	var deal models.Deal
	err := tx.Where("policy_number = ?", entry.PolicyNumber).First(&deal).Error
	if err != nil {
		return 100, nil
	}

	product, ok := cache[deal.ProductID]
	if !ok {
		var p models.Product
		if err := tx.First(&p, deal.ProductID).Error; err != nil {
			return 100, nil
		}
		product = &p
		cache[deal.ProductID] = product
	}

	formula, ok := product.CompGrid[agent.CompLevel]
	if !ok {
		return 100, nil
	}

	expression, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return 0, fmt.Errorf("bad comp formula for product %d level %s: %w", product.ID, agent.CompLevel, err)
	}

	parameters := map[string]interface{}{
		"annualPremium":   deal.AnnualPremium,
		"premium":         entry.PremiumAmount,
		"grossCommission": entry.CommissionAmount,
	}
	result, err := expression.Evaluate(parameters)
	if err != nil {
		return 0, fmt.Errorf("comp formula evaluation failed: %w", err)
	}
	percent, ok := result.(float64)
	if !ok {
		return 0, errors.New("comp formula did not produce a number")
	}
	return percent, nil
}

// CreatePayrollRunHandler builds a draft payout run from every unpaid,
// agent-matched commission entry inside the period.
func CreatePayrollRunHandler(c *gin.Context) {
	var input payrollRunInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "periodStart and periodEnd are required"})
		return
	}
	periodStart, err := time.Parse("2006-01-02", input.PeriodStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid periodStart, expected YYYY-MM-DD"})
		return
	}
	periodEnd, err := time.Parse("2006-01-02", input.PeriodEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid periodEnd, expected YYYY-MM-DD"})
		return
	}
	if !periodEnd.After(periodStart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "periodEnd must be after periodStart"})
		return
	}

	userIDVal, _ := c.Get("user_id")

	var run models.PayrollRun
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var entries []models.CommissionEntry
		if err := tx.Where("payroll_item_id IS NULL AND agent_id IS NOT NULL").
			Where("created_at >= ? AND created_at < ?", periodStart, periodEnd.AddDate(0, 0, 1)).
			Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no unpaid commission entries in period")
		}

		run = models.PayrollRun{
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Status:      models.PayrollStatusDraft,
			CreatedByID: userIDVal.(uint),
		}
		if err := tx.Create(&run).Error; err != nil {
			return err
		}

		byAgent := map[uint][]models.CommissionEntry{}
		for _, e := range entries {
			byAgent[*e.AgentID] = append(byAgent[*e.AgentID], e)
		}

		productCache := map[uint]*models.Product{}
		var runTotal float64
		for agentID, agentEntries := range byAgent {
			var agent models.User
			if err := tx.First(&agent, agentID).Error; err != nil {
				return err
			}

			var gross, payout float64
			for _, e := range agentEntries {
				percent, err := compPercentFor(tx, e, agent, productCache)
				if err != nil {
					return err
				}
				gross += e.CommissionAmount
				payout += e.CommissionAmount * percent / 100
			}

			item := models.PayrollItem{
				PayrollRunID:    run.ID,
				AgentID:         agentID,
				EntryCount:      len(agentEntries),
				GrossCommission: gross,
				PayoutAmount:    payout,
			}
			if gross != 0 {
				item.CompPercent = payout / gross * 100
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}

			entryIDs := make([]uint, 0, len(agentEntries))
			for _, e := range agentEntries {
				entryIDs = append(entryIDs, e.ID)
			}
			if err := tx.Model(&models.CommissionEntry{}).
				Where("id IN ?", entryIDs).
				Update("payroll_item_id", item.ID).Error; err != nil {
				return err
			}
			runTotal += payout
		}

		return tx.Model(&run).Updates(map[string]interface{}{
			"total_amount": runTotal,
			"agent_count":  len(byAgent),
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	config.DB.Preload("Items").Preload("Items.Agent").First(&run, run.ID)
	c.JSON(http.StatusCreated, run)
}

// ListPayrollRunsHandler returns payout runs, newest first.
func ListPayrollRunsHandler(c *gin.Context) {
	var runs []models.PayrollRun
	var totalRows int64

	query := config.DB.Model(&models.PayrollRun{}).Preload("CreatedBy").Order("period_end desc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count payroll runs"})
		return
	}
	if err := query.Scopes(Paginate(c)).Find(&runs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payroll runs"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, runs, totalRows))
}

// GetPayrollRunHandler returns a run with its per-agent items.
func GetPayrollRunHandler(c *gin.Context) {
	var run models.PayrollRun
	err := config.DB.Preload("Items").Preload("Items.Agent").Preload("CreatedBy").
		First(&run, c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payroll run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, run)
}

// GetPayrollAgentDetailHandler lists the commission entries behind one
// agent's payout in a run.
func GetPayrollAgentDetailHandler(c *gin.Context) {
	var item models.PayrollItem
	err := config.DB.Preload("Agent").
		Where("payroll_run_id = ? AND agent_id = ?", c.Param("id"), c.Param("agentId")).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No payout for this agent in this run"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	var entries []models.CommissionEntry
	config.DB.Preload("Report").Preload("Report.Carrier").
		Where("payroll_item_id = ?", item.ID).Order("id asc").Find(&entries)

	c.JSON(http.StatusOK, gin.H{"item": item, "entries": entries})
}

// FinalizePayrollRunHandler locks a draft run.
func FinalizePayrollRunHandler(c *gin.Context) {
	var run models.PayrollRun
	if err := config.DB.First(&run, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payroll run not found"})
		return
	}
	if run.Status == models.PayrollStatusFinalized {
		c.JSON(http.StatusConflict, gin.H{"error": "Payroll run is already finalized"})
		return
	}

	now := time.Now()
	if err := config.DB.Model(&run).Updates(map[string]interface{}{
		"status":       models.PayrollStatusFinalized,
		"finalized_at": now,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to finalize payroll run"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payroll run finalized"})
}

// ExportPayrollRunHandler streams a run's payouts as XLSX.
func ExportPayrollRunHandler(c *gin.Context) {
	var run models.PayrollRun
	err := config.DB.Preload("Items").Preload("Items.Agent").First(&run, c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payroll run not found"})
		return
	}

	f := excelize.NewFile()
	sheetName := "Payroll"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Agent", "NPN", "Entries", "Gross Commission", "Comp %", "Payout"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, item := range run.Items {
		row := i + 2
		agentName, npn := "", ""
		if item.Agent != nil {
			agentName = item.Agent.FullName
			npn = item.Agent.NPN
		}
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), agentName)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), npn)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), item.EntryCount)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), item.GrossCommission)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), item.CompPercent)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), item.PayoutAmount)
	}

	fileName := fmt.Sprintf("payroll_%s_%s.xlsx",
		run.PeriodStart.Format("20060102"), run.PeriodEnd.Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
	}
}
