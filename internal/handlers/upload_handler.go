package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const genericUploadDir = "./static/uploads/files"

var allowedUploadExts = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true,
	".xlsx": true, ".xls": true, ".csv": true, ".doc": true, ".docx": true,
}

// UploadFileHandler stores an arbitrary attachment and returns the path it
// will be served from. The stored name is server-generated; the original name
// is echoed back for display only.
func UploadFileHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExts[ext] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File type not allowed"})
		return
	}

	if err := ensureDir(genericUploadDir); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare upload directory"})
		return
	}

	storedName := fmt.Sprintf("%s%s", uuid.NewString(), ext)
	if err := c.SaveUploadedFile(file, filepath.Join(genericUploadDir, storedName)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"path":         "/static/uploads/files/" + storedName,
		"originalName": file.Filename,
	})
}
