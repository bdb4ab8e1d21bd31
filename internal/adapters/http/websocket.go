package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/bilbopass-geocoder/internal/core/domain"
	"github.com/samirrijal/bilbopass-geocoder/internal/core/usecases"
	"github.com/samirrijal/bilbopass-geocoder/internal/pkg/metrics"
)

// wsReply answers one client message. ID echoes the request so type-ahead
// clients can drop stale answers.
type wsReply struct {
	ID      interface{}                `json:"id,omitempty"`
	Results *geojson.FeatureCollection `json:"results,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

const wsQueryTimeout = 10 * time.Second

// WebSocketHandler returns a type-ahead handler. Clients send one JSON object
// per keystroke with the same parameters as GET /v1/autocomplete, plus an
// optional "id" and "method" ("autocomplete" by default, or "search"):
//
//	{"id":7,"text":"aban","focus.point.lat":43.26,"focus.point.lon":-2.93}
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		logger := slog.Default().With("remote", c.RemoteAddr().String())
		logger.Debug("ws client connected")

		var mu sync.Mutex

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()
		defer close(done)

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var raw map[string]interface{}
			if err := json.Unmarshal(msg, &raw); err != nil {
				_ = writeJSON(wsReply{Error: "invalid JSON"})
				continue
			}

			reply := wsReply{ID: raw["id"]}
			method := domain.MethodAutocomplete
			if m, ok := raw["method"].(string); ok && m != "" {
				parsed, err := domain.ParseMethod(m)
				if err != nil || parsed == domain.MethodReverse {
					reply.Error = "unsupported method: " + m
					_ = writeJSON(reply)
					continue
				}
				method = parsed
			}

			q := usecases.NormalizeQuery(paramsFromMap(raw), deps.Defaults)

			ctx, cancel := context.WithTimeout(context.Background(), wsQueryTimeout)
			fc, err := deps.Geocoder.Geocode(ctx, method, q)
			cancel()
			if err != nil {
				logger.Warn("ws geocode failed", "method", method, "error", err)
				reply.Error = "geocode failed"
			} else {
				reply.Results = fc
			}

			if err := writeJSON(reply); err != nil {
				break
			}
		}

		logger.Debug("ws client disconnected")
	}
}
