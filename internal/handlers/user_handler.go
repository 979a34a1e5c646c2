package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"agentspace/config"
	"agentspace/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserResponse defines the structure for user data sent in API responses.
// This helps prevent accidental leakage of sensitive data like password hashes.
type UserResponse struct {
	ID             uint      `json:"id"`
	Login          string    `json:"login"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	Phone          string    `json:"phone"`
	NPN            string    `json:"npn"`
	ResidentState  string    `json:"residentState"`
	NiprVerified   bool      `json:"niprVerified"`
	LicensedStates []string  `json:"licensedStates"`
	CompLevel      string    `json:"compLevel"`
	UplineID       *uint     `json:"uplineId"`
	Roles          []string  `json:"roles"`
	CreatedAt      time.Time `json:"createdAt"`
	PhotoURL       string    `json:"photoUrl"`
}

func toUserResponse(user models.User) UserResponse {
	var roleNames []string
	for _, role := range user.Roles {
		roleNames = append(roleNames, role.Name)
	}
	photoURL := user.PhotoURL
	if photoURL == "" {
		photoURL = "/static/placeholder.png"
	}
	return UserResponse{
		ID:             user.ID,
		Login:          user.Login,
		Email:          user.Email,
		FullName:       user.FullName,
		Phone:          user.Phone,
		NPN:            user.NPN,
		ResidentState:  user.ResidentState,
		NiprVerified:   user.NiprVerified,
		LicensedStates: user.LicensedStates,
		CompLevel:      user.CompLevel,
		UplineID:       user.UplineID,
		Roles:          roleNames,
		CreatedAt:      user.CreatedAt,
		PhotoURL:       photoURL,
	}
}

// ListUsersHandler returns a paginated list of all users with their roles.
// ?all=true returns the full list without pagination, for picker dropdowns.
func ListUsersHandler(c *gin.Context) {
	var users []models.User
	query := config.DB.Preload("Roles").Order("id asc")

	if c.Query("all") == "true" {
		if err := query.Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch users"})
			return
		}
		responseData := make([]UserResponse, 0, len(users))
		for _, user := range users {
			responseData = append(responseData, toUserResponse(user))
		}
		c.JSON(http.StatusOK, gin.H{"data": responseData})
		return
	}

	var totalRows int64
	config.DB.Model(&models.User{}).Count(&totalRows)
	if err := query.Scopes(Paginate(c)).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch users"})
		return
	}

	responseData := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responseData = append(responseData, toUserResponse(user))
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, responseData, totalRows))
}

// GetUserHandler retrieves a single user by ID.
func GetUserHandler(c *gin.Context) {
	var user models.User
	if err := config.DB.Preload("Roles").First(&user, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user))
}

// CreateUserInput defines the structure for creating a user from the admin panel.
type CreateUserInput struct {
	Login         string `json:"login" binding:"required"`
	Password      string `json:"password" binding:"required,min=8"`
	FullName      string `json:"fullName" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone"`
	ResidentState string `json:"residentState"`
	CompLevel     string `json:"compLevel"`
	UplineID      *uint  `json:"uplineId"`
	RoleIDs       []uint `json:"roleIds"`
}

// CreateUserHandler creates a new user from the admin panel.
func CreateUserHandler(c *gin.Context) {
	var input CreateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Login:         input.Login,
		Password:      string(hashedPassword),
		FullName:      input.FullName,
		Email:         input.Email,
		Phone:         input.Phone,
		ResidentState: input.ResidentState,
		UplineID:      input.UplineID,
	}
	if input.CompLevel != "" {
		user.CompLevel = input.CompLevel
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if len(input.RoleIDs) > 0 {
			var roles []models.Role
			if err := tx.Where("id IN ?", input.RoleIDs).Find(&roles).Error; err != nil {
				return err
			}
			return tx.Model(&user).Association("Roles").Replace(roles)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user: " + err.Error()})
		return
	}

	config.DB.Preload("Roles").First(&user, user.ID)
	c.JSON(http.StatusCreated, toUserResponse(user))
}

// UpdateUserInput defines the structure for updating a user.
type UpdateUserInput struct {
	FullName      string `json:"fullName" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone"`
	ResidentState string `json:"residentState"`
	CompLevel     string `json:"compLevel"`
	UplineID      *uint  `json:"uplineId"`
	RoleIDs       []uint `json:"roleIds"`
	Password      string `json:"password"`
}

// UpdateUserHandler updates a user's data and role assignments.
func UpdateUserHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := config.DB.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var input UpdateUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user.FullName = input.FullName
	user.Email = input.Email
	user.Phone = input.Phone
	user.ResidentState = input.ResidentState
	user.UplineID = input.UplineID
	if input.CompLevel != "" {
		user.CompLevel = input.CompLevel
	}
	if input.Password != "" {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("Failed to hash password during update", "error", err, "user_id", user.ID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user.Password = string(hashedPassword)
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		var roles []models.Role
		if len(input.RoleIDs) > 0 {
			if err := tx.Where("id IN ?", input.RoleIDs).Find(&roles).Error; err != nil {
				return err
			}
		}
		return tx.Model(&user).Association("Roles").Replace(roles)
	})
	if err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user: " + err.Error()})
		return
	}

	// Role or comp changes must not be served from a stale auth cache.
	if config.RDB != nil {
		cacheKey := fmt.Sprintf("user:%d:data", user.ID)
		if err := config.RDB.Del(config.Ctx, cacheKey).Err(); err != nil {
			slog.Error("Failed to invalidate cache for user", "error", err, "user_id", user.ID)
		}
	}

	config.DB.Preload("Roles").First(&user, user.ID)
	c.JSON(http.StatusOK, toUserResponse(user))
}

// DeleteUserHandler soft-deletes a user. Agents with deals on the books are
// kept for reporting and cannot be removed.
func DeleteUserHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var dealCount int64
	config.DB.Model(&models.Deal{}).Where("agent_id = ?", id).Count(&dealCount)
	if dealCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete an agent with deals on the books"})
		return
	}

	if result := config.DB.Delete(&models.User{}, id); result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// ListRolesHandler returns all roles with their permissions, for the admin
// role picker.
func ListRolesHandler(c *gin.Context) {
	var roles []models.Role
	if err := config.DB.Preload("Permissions").Order("id asc").Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch roles"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": roles})
}
