package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/coder/websocket"
)

// Traffic is one sample from the engine's traffic feed, in bytes per
// second.
type Traffic struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

// StreamTraffic subscribes to the engine's traffic feed and calls fn for
// every sample until ctx ends or the engine closes the stream. A normal
// closure returns nil.
func (c *APIController) StreamTraffic(ctx context.Context, fn func(Traffic)) error {
	if fn == nil {
		return fmt.Errorf("engine: traffic callback is required")
	}

	target, err := c.trafficURL()
	if err != nil {
		return err
	}

	conn, resp, err := websocket.Dial(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("engine: traffic stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("engine: traffic stream: %w", err)
		}
		var sample Traffic
		if err := json.Unmarshal(message, &sample); err != nil {
			continue
		}
		fn(sample)
	}
}

func (c *APIController) trafficURL() (string, error) {
	target, err := url.Parse(c.base + "/traffic")
	if err != nil {
		return "", fmt.Errorf("engine: traffic url: %w", err)
	}
	switch target.Scheme {
	case "http":
		target.Scheme = "ws"
	case "https":
		target.Scheme = "wss"
	}
	if c.secret != "" {
		query := target.Query()
		query.Set("token", c.secret)
		target.RawQuery = query.Encode()
	}
	return target.String(), nil
}
