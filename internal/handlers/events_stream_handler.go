package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/openpayflow/orchestrator/internal/events"
	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/services"
)

// EventsStreamHandler serves GET /v1/events/stream — an additive,
// non-critical-path live view of newly-drained Events. Grounded on the
// photostudio chat package's upgrade/register/ping-loop shape.
type EventsStreamHandler struct {
	hub       *events.Hub
	merchants *services.MerchantLookup
	upgrader  websocket.Upgrader
}

func NewEventsStreamHandler(hub *events.Hub, merchants *services.MerchantLookup) *EventsStreamHandler {
	return &EventsStreamHandler{
		hub:       hub,
		merchants: merchants,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Stream handles GET /v1/events/stream?merchantApiKey=…. WebSockets carry
// no custom headers from a browser client, so the key travels as a query
// param here even though the POST endpoints accept it in the body.
func (h *EventsStreamHandler) Stream(c echo.Context) error {
	apiKey := c.QueryParam("merchantApiKey")
	merchant, err := h.merchants.Lookup(c.Request().Context(), services.HashAPIKey(apiKey))
	if err != nil {
		return faults.Auth("API key not recognized")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("events: websocket upgrade failed: %v", err)
		return nil
	}
	defer conn.Close()

	ch, unsubscribe := h.hub.Subscribe(merchant.ID)
	defer unsubscribe()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	go discardIncoming(conn)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(n.Event); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// discardIncoming drains client frames so the connection's read deadline
// keeps advancing; this stream never accepts client-originated messages.
func discardIncoming(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
