package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/borjarodrigo23ia/ocr-ia/internal/models"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// LoginHandler exchanges the configured credentials for a session token.
func LoginHandler(cfg models.AuthConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if cfg.Secret == "" {
			http.Error(w, `{"error":"authentication is not enabled"}`, http.StatusNotFound)
			return
		}

		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(cfg.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(cfg.Password)) == 1
		if !userOK || !passOK {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}

		token, err := GenerateToken(cfg.Secret, req.Username)
		if err != nil {
			http.Error(w, `{"error":"failed to generate token"}`, http.StatusInternalServerError)
			return
		}

		json.NewEncoder(w).Encode(LoginResponse{Token: token, Username: req.Username})
	}
}
