package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
	"ridecore/internal/service"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRequest is the HTTP request body for user registration.
type RegisterRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Role    string `json:"role" binding:"required,oneof=RIDER DRIVER"`
}

// UserResponse is the HTTP response for user data.
type UserResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	Address       string    `json:"address,omitempty"`
	Role          string    `json:"role"`
	AccountStatus string    `json:"accountStatus"`
	IsVerified    bool      `json:"isVerified"`
	Rides         []string  `json:"rides"`
	CreatedAt     time.Time `json:"createdAt"`
}

func newUserResponse(u *domain.User) UserResponse {
	rides := u.Rides
	if rides == nil {
		rides = []string{}
	}
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Address:       u.Address,
		Role:          string(u.Role),
		AccountStatus: string(u.AccountStatus),
		IsVerified:    u.IsVerified,
		Rides:         rides,
		CreatedAt:     u.CreatedAt,
	}
}

// Register handles POST /v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), service.RegisterUserRequest{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Role:    domain.Role(req.Role),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusCreated, newUserResponse(user))
}

// GetUser handles GET /v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, newUserResponse(user))
}

// GetAll handles GET /v1/users
func (h *UserHandler) GetAll(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}

	page, err := h.userService.ListUsers(c.Request.Context(), caller, listParams(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, repository.UserSchema, page)
}
