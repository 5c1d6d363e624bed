package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"mechanicapp/server/room"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Rooms     int       `json:"rooms"`
	Timestamp time.Time `json:"timestamp"`
}

func HandleHealth(rooms *room.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:    "UP",
			Rooms:     rooms.Count(),
			Timestamp: time.Now().UTC(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
