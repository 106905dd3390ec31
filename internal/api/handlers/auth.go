package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventhub/internal/api/middleware"
	"github.com/Togather-Foundation/eventhub/internal/api/problem"
	"github.com/Togather-Foundation/eventhub/internal/domain/accounts"
)

// AccountService is the part of accounts.Service used over HTTP.
type AccountService interface {
	Register(ctx context.Context, p accounts.RegisterParams) (accounts.RegisterResult, error)
	Login(ctx context.Context, p accounts.LoginParams) (accounts.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (accounts.Tokens, error)
	Logout(ctx context.Context, userID int64) error
}

type AuthHandler struct {
	Service   AccountService
	Validator *Validator
	Env       string
}

func NewAuthHandler(service AccountService, validator *Validator, env string) *AuthHandler {
	return &AuthHandler{Service: service, Validator: validator, Env: env}
}

type signupRequest struct {
	FirstName   string    `json:"first_name" validate:"person_name"`
	LastName    string    `json:"last_name" validate:"person_name"`
	DateOfBirth time.Time `json:"date_of_birth" validate:"required,birth_date"`
	Email       string    `json:"email" validate:"account_email"`
	Password    string    `json:"password" validate:"password"`
}

type signinRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}

	result, err := h.Service.Register(r.Context(), accounts.RegisterParams{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		Email:       req.Email,
		Password:    req.Password,
	})
	if err != nil {
		if errors.Is(err, accounts.ErrEmailTaken) {
			problem.Write(w, r, http.StatusConflict, problem.TypeConflict, "Email already registered", err, h.Env,
				problem.WithDetail("A user with this email already exists."))
			return
		}
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{UserID: result.UserID, IsEmailConfirmed: result.IsEmailConfirmed})
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}

	tokens, err := h.Service.Login(r.Context(), accounts.LoginParams{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.Env,
				problem.WithDetail("Invalid email or password."))
			return
		}
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toTokens(tokens))
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !bind(w, r, h.Validator, &req, h.Env) {
		return
	}

	tokens, err := h.Service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidRefreshToken) {
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.Env,
				problem.WithDetail("Refresh token is not valid."))
			return
		}
		problem.Internal(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, toTokens(tokens))
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserID(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Unauthorized", err, h.Env)
		return
	}
	if err := h.Service.Logout(r.Context(), userID); err != nil {
		problem.Internal(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
