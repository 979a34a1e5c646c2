package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"agentspace/config"
	"agentspace/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// GetProfileHandler returns the current user's profile. Roles and permissions
// come straight from the context the auth middleware populated.
func GetProfileHandler(c *gin.Context) {
	userIDVal, _ := c.Get("user_id")
	loginVal, _ := c.Get("login")
	rolesVal, _ := c.Get("roles")
	permissionsVal, _ := c.Get("permissions")

	userID, _ := userIDVal.(uint)
	login, _ := loginVal.(string)
	roles, _ := rolesVal.([]string)
	permissions, _ := permissionsVal.([]string)

	var userDetails models.User
	if err := config.DB.Select("full_name", "email", "phone", "npn", "resident_state", "nipr_verified", "comp_level", "photo_url").First(&userDetails, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User details not found in DB"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":            userID,
		"login":         login,
		"fullName":      userDetails.FullName,
		"email":         userDetails.Email,
		"phone":         userDetails.Phone,
		"npn":           userDetails.NPN,
		"residentState": userDetails.ResidentState,
		"niprVerified":  userDetails.NiprVerified,
		"compLevel":     userDetails.CompLevel,
		"photoUrl":      userDetails.PhotoURL,
		"roles":         roles,
		"permissions":   permissions,
	})
}

// UpdateProfileHandler updates profile fields, optionally the password, and
// optionally a new profile photo from a multipart form.
func UpdateProfileHandler(c *gin.Context) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authorized"})
		return
	}
	userID := userIDVal.(uint)

	var user models.User
	if err := config.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	user.FullName = c.PostForm("fullName")
	user.Email = c.PostForm("email")
	user.Phone = c.PostForm("phone")
	user.ResidentState = c.PostForm("residentState")

	if password := c.PostForm("newPassword"); password != "" {
		oldPassword := c.PostForm("oldPassword")
		if oldPassword == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The current password is required to change it"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "The current password is incorrect"})
			return
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash new password"})
			return
		}
		user.Password = string(hashedPassword)
	}

	if file, _ := c.FormFile("photo"); file != nil {
		uploadDir := "./static/uploads/users"
		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			os.MkdirAll(uploadDir, os.ModePerm)
		}
		ext := filepath.Ext(file.Filename)
		newFileName := fmt.Sprintf("%d_%d%s", user.ID, time.Now().Unix(), ext)
		filePath := filepath.Join(uploadDir, newFileName)
		if err := c.SaveUploadedFile(file, filePath); err == nil {
			user.PhotoURL = "/static/uploads/users/" + newFileName
		}
	}

	if err := config.DB.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	// Cached roles/permissions are unaffected, but drop the entry anyway so
	// the next request sees a consistent snapshot.
	if config.RDB != nil {
		config.RDB.Del(config.Ctx, fmt.Sprintf("user:%d:data", userID))
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}
