package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"meetlens/internal/classify"
	appLog "meetlens/internal/log"
	"meetlens/internal/outlook"
)

const (
	msgUnexpected = "Une erreur inattendue s'est produite"
	msgOutlook    = "Impossible de se connecter à Outlook. Veuillez vérifier que vous êtes connecté et réessayez."
	msgNetwork    = "Erreur de connexion. Vérifiez votre connexion réseau et réessayez."
	msgPermission = "Permissions insuffisantes. Veuillez contacter votre administrateur."
)

// UserMessage turns err into a message fit for the dashboard.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *outlook.APIError
	switch {
	case errors.Is(err, outlook.ErrNoToken):
		return msgOutlook
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusForbidden {
			return msgPermission
		}
		return msgOutlook
	case errors.Is(err, context.DeadlineExceeded):
		return msgNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "outlook") || strings.Contains(msg, "exchange"):
		return msgOutlook
	case strings.Contains(msg, "réseau") || strings.Contains(msg, "network") || strings.Contains(msg, "fetch") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return msgNetwork
	case strings.Contains(msg, "permission") || strings.Contains(msg, "accès"):
		return msgPermission
	}
	return "Erreur : " + err.Error()
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeFailure maps err to a status: configuration errors are the client's
// fault (400), everything else is a 500 with a friendly message.
func writeFailure(w http.ResponseWriter, err error) {
	var cfgErr *classify.ConfigurationError
	if errors.As(err, &cfgErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: cfgErr.Error(), Field: cfgErr.Field})
		return
	}
	appLog.Error("request failed", err)
	writeError(w, http.StatusInternalServerError, UserMessage(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
