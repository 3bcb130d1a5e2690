/**
 * @description
 * This file contains the shared handler state and response helpers for the
 * API endpoints. Handlers parse requests, call the application layer, and
 * write JSON responses; they are the bridge between the web layer and the
 * business logic.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/benardngware/somanamimi2/internal/app"
	"github.com/benardngware/somanamimi2/internal/store"
)

// Handlers holds the dependencies the endpoint handlers use.
type Handlers struct {
	repo    store.Repository
	service *app.Service
	grant   *app.GrantService
	tokens  *TokenManager
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(repo store.Repository, service *app.Service, grant *app.GrantService, tokens *TokenManager) *Handlers {
	return &Handlers{
		repo:    repo,
		service: service,
		grant:   grant,
		tokens:  tokens,
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}
