// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/partyroom/internal/lobby"
)

// RoomInfoHandler serves GET /rooms/{code} with the public view of a room.
func RoomInfoHandler(logger logrus.FieldLogger, mgr *lobby.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := mgr.LookupRoom(r.Context(), r.PathValue("code"))
		if errors.Is(err, lobby.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.WithError(err).Warn("room lookup failed")
			http.Error(w, "room lookup failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(info)
	}
}

// PingHandler answers liveness probes.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("pong"))
}
