package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"mechanicapp/protocol"
	"mechanicapp/server/metrics"
	"mechanicapp/server/room"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxQuoteBody = 64 << 10

type eventAccepted struct {
	Event     string `json:"event"`
	BookingID string `json:"bookingId"`
	Delivered bool   `json:"delivered"`
}

// HandleQuoteEvent lets the backend push a quote lifecycle event to a
// booking room: POST /bookings/{id}/events/{event} with the quote as body.
func HandleQuoteEvent(rooms *room.Manager, authn Authenticator, m *metrics.Metrics, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authn.Authenticate(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, protocol.ErrorPayload{Message: "Unauthorized"})
			return
		}

		vars := mux.Vars(r)
		bookingID, event := vars["id"], vars["event"]
		if !protocol.IsQuoteEvent(event) {
			writeJSON(w, http.StatusBadRequest, protocol.ErrorPayload{Message: "unknown quote event " + event})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxQuoteBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, protocol.ErrorPayload{Message: "unreadable body"})
			return
		}
		payload := protocol.QuotePayload{BookingID: bookingID, Event: event}
		if len(body) > 0 {
			if !json.Valid(body) {
				writeJSON(w, http.StatusBadRequest, protocol.ErrorPayload{Message: "Invalid JSON format"})
				return
			}
			payload.Quote = body
		}

		env, err := protocol.Encode(event, payload)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, protocol.ErrorPayload{Message: err.Error()})
			return
		}
		frame, _ := json.Marshal(env)

		// Only rooms somebody joined exist; nobody is listening otherwise.
		rm, ok := rooms.Lookup(bookingID)
		if ok {
			rm.Broadcast(frame)
		}
		m.QuoteEvents.WithLabelValues(event).Inc()
		log.Info("quote event", zap.String("booking", bookingID), zap.String("event", event), zap.Bool("delivered", ok))
		writeJSON(w, http.StatusAccepted, eventAccepted{Event: event, BookingID: bookingID, Delivered: ok})
	}
}
