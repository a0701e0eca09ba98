package handlers

import (
	"net/http"
	"time"

	"github.com/atharvakonge/paper-trader/internal/logger"
	"github.com/atharvakonge/paper-trader/internal/quote"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamBuffer = 16
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PriceStream pushes simulator ticks to websocket clients.
type PriceStream struct {
	sim *quote.Simulator
	log logger.Logger
}

func NewPriceStream(sim *quote.Simulator, log logger.Logger) *PriceStream {
	return &PriceStream{sim: sim, log: log}
}

// Serve handles GET /ws/prices. Each client gets its own subscription, which ends when
// the client disconnects or a write fails.
func (p *PriceStream) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		p.log.Warn("WebSocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	defer conn.Close()

	updates, cancel := p.sim.Subscribe(streamBuffer)
	defer cancel()

	p.log.Info("Price stream client connected", map[string]any{"ip": c.ClientIP()})

	// The client never sends anything meaningful; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			p.log.Info("Price stream client disconnected", map[string]any{"ip": c.ClientIP()})
			return
		case <-c.Request.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				p.log.Warn("WebSocket write failed", map[string]any{"error": err.Error()})
				return
			}
		}
	}
}
