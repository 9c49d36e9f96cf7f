package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"usersapp/internal/middleware"
	"usersapp/internal/models"
	"usersapp/internal/service"
)

type userResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: user.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := bindBody(c, loginSchema, &req); err != nil {
		h.respondError(c, err)
		return
	}

	token, err := h.users.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h HandlerSet) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := bindBody(c, createUserSchema, &req); err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	id, err := userIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.users.Get(c.Request.Context(), middleware.CurrentSubject(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	id, err := userIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var req updateUserRequest
	if err := bindBody(c, updateUserSchema, &req); err != nil {
		h.respondError(c, err)
		return
	}

	user, err := h.users.Update(c.Request.Context(), middleware.CurrentSubject(c), id, service.UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	id, err := userIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.users.Delete(c.Request.Context(), middleware.CurrentSubject(c), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
