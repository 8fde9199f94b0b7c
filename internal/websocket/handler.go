package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/roadpoints/internal/auth"
	"github.com/dukerupert/roadpoints/internal/model"
)

// ScopeFor derives the event scope of an authenticated identity.
func ScopeFor(ac auth.AuthContext) Scope {
	switch ac.Role {
	case model.RoleAdmin:
		return Scope{All: true}
	case model.RoleSponsor:
		return Scope{SponsorID: ac.SponsorID}
	default:
		return Scope{DriverID: ac.UserID}
	}
}

// HandleWebSocket returns an HTTP handler that upgrades authenticated
// requests to WebSocket and runs them as Hub clients. originPatterns lists
// the allowed browser origins.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err, "user_id", ac.UserID)
			return
		}

		client := NewClient(hub, conn, ScopeFor(ac))
		client.Run(r.Context())
	}
}
