package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and subscribes it to the coach named
// by the "coach" query parameter, or to all coaches when absent.
func HandleWebSocket(hub *Hub, logger *slog.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var coachID int64
		if v := r.URL.Query().Get("coach"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "invalid coach", http.StatusBadRequest)
				return
			}
			coachID = id
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     originPatterns,
			InsecureSkipVerify: len(originPatterns) == 0,
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err, "remote", r.RemoteAddr)
			return
		}

		logger.Debug("websocket connected", "coach_id", coachID)
		NewClient(hub, conn, coachID).Run(r.Context())
		logger.Debug("websocket disconnected", "coach_id", coachID)
	}
}
