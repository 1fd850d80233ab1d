package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"findash/internal/app"
	"findash/internal/model"
	"findash/internal/transport/http/middleware"
	"findash/internal/transport/http/response"
)

type AuthHandler struct {
	auth *app.AuthService
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"omitempty,email,max=128"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// UserView is the public shape of an account; the password hash never leaves the server.
type UserView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type SessionView struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

func NewAuthHandler(auth *app.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}
	if req.Email == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "email is required")
		return
	}
	result, err := h.auth.Register(c.Request.Context(), app.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(c, err, "register failed")
		return
	}
	response.OK(c, sessionView(result))
}

func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}
	result, err := h.auth.Login(c.Request.Context(), app.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(c, err, "login failed")
		return
	}
	response.OK(c, sessionView(result))
}

// Me returns the account behind the bearer token.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.UserID(c)
	if userID == 0 {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	user, err := h.auth.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err, "fetch current user failed")
		return
	}
	if user == nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found")
		return
	}
	response.OK(c, userView(user))
}

func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return req, false
	}
	return req, true
}

func sessionView(result *app.AuthResult) SessionView {
	return SessionView{Token: result.Token, User: userView(result.User)}
}

func userView(u *model.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, Email: u.Email}
}
