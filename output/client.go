package output

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
)

// Frame prefixes of the text frames sent back to the client.
const (
	PrefixEcho    = "[echo] "
	PrefixInterim = "[interim] "
	PrefixFinal   = "[final] "
	PrefixError   = "[error] "
)

// Writer is the write half of a WebSocket connection.
type Writer interface {
	WriteMessage(messageType int, data []byte) error
}

// Client sends text frames to one connection. It is safe for concurrent use:
// the echo path and the transcript relay write from different goroutines,
// and the connection allows a single writer at a time.
type Client struct {
	mu sync.Mutex
	ws Writer
}

// NewClient wraps ws.
func NewClient(ws Writer) *Client {
	return &Client{ws: ws}
}

// Echo replies to a text frame.
func (c *Client) Echo(text string) error {
	return c.send(PrefixEcho + text)
}

// Transcript relays a recognition result.
func (c *Client) Transcript(text string, final bool) error {
	if final {
		return c.send(PrefixFinal + text)
	}
	return c.send(PrefixInterim + text)
}

// Error reports a backend failure.
func (c *Client) Error(description string) error {
	return c.send(PrefixError + description)
}

func (c *Client) send(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		return errors.Wrap(err, "output: write text frame")
	}
	return nil
}
