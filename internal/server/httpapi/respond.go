package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorWith(w, r, code, msg, nil)
}

func writeErrorWith(w http.ResponseWriter, r *http.Request, code int, msg string, extra map[string]any) {
	payload := map[string]any{
		"success": false,
		"error":   msg,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}
