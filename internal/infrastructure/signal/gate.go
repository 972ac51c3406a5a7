package signal

import (
	"net/http"
	"strings"

	"classrelay/internal/core/domain"
	"classrelay/internal/core/ports"
	"classrelay/internal/infrastructure/monitoring"
	apperrors "classrelay/pkg/errors"
	"classrelay/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gate authenticates every incoming connection before it is admitted to a
// namespace. The credential check runs once per connection, synchronously,
// before any event handler can execute; a failed check rejects the handshake
// with a structured 401 and touches no namespace state.
type Gate struct {
	verifier ports.TokenVerifier
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
	metrics  *monitoring.Collector
}

func NewGate(verifier ports.TokenVerifier, allowedOrigins []string, logger *zap.SugaredLogger, metrics *monitoring.Collector) *Gate {
	return &Gate{
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:  logger,
		metrics: metrics,
	}
}

// Endpoint returns the gin handler serving one namespace: verify, upgrade,
// run the connection's pumps, clean up.
func (g *Gate) Endpoint(hub *Hub, handler EventHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := g.verifier.Verify(bearerToken(c.Request))
		if err != nil {
			if g.metrics != nil {
				g.metrics.AuthRejected(hub.namespace)
			}
			g.logger.Warnw("handshake rejected",
				"namespace", hub.namespace,
				"remote_addr", c.Request.RemoteAddr,
				"error", err,
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   string(apperrors.ErrCodeAuthFailed),
				"message": err.Error(),
			})
			return
		}

		sock, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			g.logger.Errorw("websocket upgrade failed",
				"namespace", hub.namespace,
				"error", err,
			)
			return
		}

		conn := newConn(domain.ConnectionID(utils.NewConnectionID()), identity, hub, sock)
		hub.register(conn)
		g.logger.Infow("connection admitted",
			"namespace", hub.namespace,
			"connection_id", conn.ID(),
			"user_id", identity.UserID,
		)

		go conn.writePump()
		handler.HandleConnect(conn)
		conn.readPump(handler)

		handler.HandleDisconnect(conn)
		hub.unregister(conn)
		conn.close()

		g.logger.Infow("connection closed",
			"namespace", hub.namespace,
			"connection_id", conn.ID(),
			"user_id", identity.UserID,
		)
	}
}

// bearerToken pulls the credential from the Authorization header or, for
// browser WebSocket clients that cannot set headers, the token query param.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowedSet[origin]
		return ok
	}
}
