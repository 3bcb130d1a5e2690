package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/benardngware/somanamimi2/internal/domain"
	"github.com/benardngware/somanamimi2/internal/store"
)

const bcryptCost = 10

// RegisterHandler handles POST /auth/register.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Please provide all fields")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		log.Printf("level=error component=api endpoint=register msg=\"password hash failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Server error during registration")
		return
	}

	user := &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	userID, err := h.repo.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			h.writeError(w, http.StatusConflict, "User already exists")
			return
		}
		log.Printf("level=error component=api endpoint=register msg=\"user insert failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Server error during registration")
		return
	}
	user.ID = userID

	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Printf("level=error component=api endpoint=register msg=\"token generation failed\" user_id=%d err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Server error during registration")
		return
	}

	h.writeJSON(w, http.StatusCreated, domain.AuthResponse{
		ID:    userID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		Token: token,
	})
}

// LoginHandler handles POST /auth/login.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.repo.FindUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Printf("level=error component=api endpoint=login msg=\"user lookup failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		log.Printf("level=error component=api endpoint=login msg=\"token generation failed\" user_id=%d err=%v", user.ID, err)
		h.writeError(w, http.StatusInternalServerError, "Server error during login")
		return
	}

	h.writeJSON(w, http.StatusOK, domain.AuthResponse{
		ID:              user.ID,
		Name:            user.Name,
		Email:           user.Email,
		Role:            user.Role,
		HasSubscription: user.HasSubscription,
		Token:           token,
	})
}

// MeHandler handles GET /auth/me. The client calls this after a payment to
// pick up the refreshed subscription flag.
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user from context")
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}
