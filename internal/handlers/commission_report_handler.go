package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"agentspace/config"
	"agentspace/models"

	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const statementUploadDir = "./static/uploads/statements"

// RecognizeStatementResponse is the shape the AI extraction returns.
type RecognizeStatementResponse struct {
	CarrierName string `json:"carrierName"`
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
	TotalAmount string `json:"totalAmount"`
}

// UploadCommissionReportHandler accepts a carrier statement (xlsx, xls or
// csv), stores the original file, parses it into commission entries and
// resolves each line's writing agent by NPN.
func UploadCommissionReportHandler(c *gin.Context) {
	userIDVal, _ := c.Get("user_id")
	userID := userIDVal.(uint)

	carrierID, err := strconv.Atoi(c.PostForm("carrierId"))
	if err != nil || carrierID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid carrierId is required"})
		return
	}
	var carrier models.Carrier
	if err := config.DB.First(&carrier, carrierID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Carrier not found"})
		return
	}

	file, err := c.FormFile("statementFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statement file is required"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".xlsx" && ext != ".xls" && ext != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type, expected .xlsx, .xls or .csv"})
		return
	}

	if err := ensureDir(statementUploadDir); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload directory"})
		return
	}
	storedName := fmt.Sprintf("%s%s", uuid.NewString(), ext)
	storedPath := filepath.Join(statementUploadDir, storedName)
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded file"})
		return
	}

	var rows [][]string
	switch ext {
	case ".xlsx":
		f, err := os.Open(storedPath)
		if err == nil {
			rows, err = readXLSXRows(f)
			f.Close()
		}
		if err != nil {
			failUpload(c, storedPath, "Could not read workbook: "+err.Error())
			return
		}
	case ".csv":
		f, err := os.Open(storedPath)
		if err == nil {
			rows, err = readCSVRows(f)
			f.Close()
		}
		if err != nil {
			failUpload(c, storedPath, "Could not read CSV: "+err.Error())
			return
		}
	case ".xls":
		rows, err = readXLSRows(storedPath)
		if err != nil {
			failUpload(c, storedPath, "Could not read legacy workbook: "+err.Error())
			return
		}
	}

	entries, err := parseStatementRows(rows)
	if err != nil {
		failUpload(c, storedPath, "Statement parsing failed: "+err.Error())
		return
	}

	report := models.CommissionReport{
		CarrierID:    carrier.ID,
		FileName:     file.Filename,
		FilePath:     "/static/uploads/statements/" + storedName,
		Status:       models.ReportStatusProcessing,
		UploadedByID: userID,
	}
	if ps := c.PostForm("periodStart"); ps != "" {
		if t, err := time.Parse("2006-01-02", ps); err == nil {
			report.PeriodStart = &t
		}
	}
	if pe := c.PostForm("periodEnd"); pe != "" {
		if t, err := time.Parse("2006-01-02", pe); err == nil {
			report.PeriodEnd = &t
		}
	}

	// NPN -> agent id lookup, one query for the whole statement.
	npnSet := map[string]struct{}{}
	for _, e := range entries {
		if e.WritingAgentNPN != "" {
			npnSet[e.WritingAgentNPN] = struct{}{}
		}
	}
	npns := make([]string, 0, len(npnSet))
	for npn := range npnSet {
		npns = append(npns, npn)
	}
	agentByNPN := map[string]uint{}
	if len(npns) > 0 {
		var agents []models.User
		config.DB.Where("npn IN ?", npns).Find(&agents)
		for _, a := range agents {
			agentByNPN[a.NPN] = a.ID
		}
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&report).Error; err != nil {
			return err
		}

		var total float64
		records := make([]models.CommissionEntry, 0, len(entries))
		for _, e := range entries {
			record := models.CommissionEntry{
				ReportID:         report.ID,
				PolicyNumber:     e.PolicyNumber,
				InsuredName:      e.InsuredName,
				WritingAgentNPN:  e.WritingAgentNPN,
				PremiumAmount:    e.PremiumAmount,
				CommissionAmount: e.CommissionAmount,
				StatementDate:    e.StatementDate,
			}
			if agentID, ok := agentByNPN[e.WritingAgentNPN]; ok {
				record.AgentID = &agentID
			}
			total += e.CommissionAmount
			records = append(records, record)
		}
		if err := tx.Create(&records).Error; err != nil {
			return err
		}

		return tx.Model(&report).Updates(map[string]interface{}{
			"status":       models.ReportStatusParsed,
			"entry_count":  len(records),
			"total_amount": total,
		}).Error
	})
	if err != nil {
		slog.Error("failed to persist commission report", "error", err, "file", file.Filename)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save commission report"})
		return
	}

	config.DB.First(&report, report.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "Statement parsed", "report": report})
}

func failUpload(c *gin.Context, storedPath, reason string) {
	os.Remove(storedPath)
	c.JSON(http.StatusUnprocessableEntity, gin.H{"error": reason})
}

// ListCommissionReportsHandler returns uploaded statements, newest first.
func ListCommissionReportsHandler(c *gin.Context) {
	var reports []models.CommissionReport
	var totalRows int64

	query := config.DB.Model(&models.CommissionReport{}).
		Preload("Carrier").Preload("UploadedBy").Order("created_at desc")

	if carrierID := c.Query("carrier_id"); carrierID != "" {
		query = query.Where("carrier_id = ?", carrierID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count reports"})
		return
	}
	if err := query.Scopes(Paginate(c)).Find(&reports).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
		return
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, reports, totalRows))
}

// GetCommissionReportHandler returns one report's metadata.
func GetCommissionReportHandler(c *gin.Context) {
	var report models.CommissionReport
	err := config.DB.Preload("Carrier").Preload("UploadedBy").First(&report, c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// ListCommissionEntriesHandler returns the parsed lines of a report, paginated.
func ListCommissionEntriesHandler(c *gin.Context) {
	reportID := c.Param("id")

	var entries []models.CommissionEntry
	var totalRows int64

	query := config.DB.Model(&models.CommissionEntry{}).
		Preload("Agent").Where("report_id = ?", reportID).Order("id asc")

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(`LOWER(policy_number) LIKE ? OR LOWER(insured_name) LIKE ? OR writing_agent_npn LIKE ?`,
			pattern, pattern, pattern)
	}
	if c.Query("unmatched") == "true" {
		query = query.Where("agent_id IS NULL")
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count entries"})
		return
	}
	if err := query.Scopes(Paginate(c)).Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch entries"})
		return
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, entries, totalRows))
}

// DeleteCommissionReportHandler removes a report and its entries unless any
// entry has already been paid out.
func DeleteCommissionReportHandler(c *gin.Context) {
	id := c.Param("id")

	var paidCount int64
	config.DB.Model(&models.CommissionEntry{}).
		Where("report_id = ? AND payroll_item_id IS NOT NULL", id).Count(&paidCount)
	if paidCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Report has entries on a payroll run and cannot be deleted"})
		return
	}

	if err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("report_id = ?", id).Delete(&models.CommissionEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.CommissionReport{}, id).Error
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Report deleted"})
}

// RecognizeStatementHandler extracts statement metadata (carrier, period,
// total) from an uploaded file with Gemini. Optional feature; 503 when the
// client is not configured.
func RecognizeStatementHandler(c *gin.Context) {
	if config.GeminiClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Statement recognition is not configured"})
		return
	}

	file, header, err := c.Request.FormFile("statementFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statement file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file data"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	prompt := []genai.Part{
		genai.Text("You are an expert at reading insurance carrier commission statements. " +
			"Analyze the attached file and extract the carrier name, the statement period start and end dates, " +
			"and the total commission amount. Respond with JSON only, no prose, using this exact structure:\n" +
			`{"carrierName": "", "periodStart": "yyyy-mm-dd", "periodEnd": "yyyy-mm-dd", "totalAmount": "0.00"}`),
		&genai.Blob{MIMEType: header.Header.Get("Content-Type"), Data: data},
	}

	resp, err := config.GeminiClient.GenerateContent(ctx, prompt...)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Recognition error: " + err.Error()})
		return
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Recognition returned no result"})
		return
	}

	jsonResponse, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to convert recognition response to text"})
		return
	}

	cleanJSON := strings.Trim(string(jsonResponse), "```json \n")
	c.Data(http.StatusOK, "application/json", []byte(cleanJSON))
}

// DownloadReportArchiveHandler exports every parsed commission entry as CSV.
func DownloadReportArchiveHandler(c *gin.Context) {
	var entries []models.CommissionEntry
	if err := config.DB.Preload("Agent").Preload("Report").Preload("Report.Carrier").
		Order("created_at desc").Find(&entries).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch entries from database"})
		return
	}
	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No commission entries found to export"})
		return
	}

	b := &bytes.Buffer{}
	b.Write([]byte{0xEF, 0xBB, 0xBF}) // BOM for UTF-8

	w := csv.NewWriter(b)

	headers := []string{
		"ID", "Uploaded", "Carrier", "Report File", "Policy #", "Insured",
		"Writing Agent NPN", "Agent", "Premium", "Commission", "Statement Date", "Paid Out",
	}
	if err := w.Write(headers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write CSV header"})
		return
	}

	for _, e := range entries {
		var carrierName, fileName, agentName, stmtDate string
		if e.Report != nil {
			fileName = e.Report.FileName
			if e.Report.Carrier != nil {
				carrierName = e.Report.Carrier.Name
			}
		}
		if e.Agent != nil {
			agentName = e.Agent.FullName
		}
		if e.StatementDate != nil {
			stmtDate = e.StatementDate.Format("2006-01-02")
		}
		record := []string{
			strconv.Itoa(int(e.ID)), e.CreatedAt.Format("2006-01-02 15:04:05"),
			carrierName, fileName, e.PolicyNumber, e.InsuredName,
			e.WritingAgentNPN, agentName,
			fmt.Sprintf("%.2f", e.PremiumAmount), fmt.Sprintf("%.2f", e.CommissionAmount),
			stmtDate, strconv.FormatBool(e.PayrollItemID != nil),
		}
		if err := w.Write(record); err != nil {
			slog.Warn("failed to write record to CSV", "entry_id", e.ID, "error", err)
			continue
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error writing CSV data"})
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename=commission_entries_export.csv")
	c.Data(http.StatusOK, "text/csv", b.Bytes())
}
