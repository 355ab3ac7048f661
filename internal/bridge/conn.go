package bridge

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kapu/untranslate-go/internal/constants"
)

// Conn wraps one websocket with write serialization, deadlines and the
// ping/pong keepalive. The mirror goroutine and the read loop both write,
// so every write goes through the mutex.
type Conn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	pingStop chan struct{}
	pingOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:       ws,
		pingStop: make(chan struct{}),
	}

	ws.SetReadLimit(constants.BridgeConfig.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(constants.BridgeConfig.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(constants.BridgeConfig.PongTimeout))
	})

	go c.pingLoop()
	return c
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(constants.BridgeConfig.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.pingStop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.ws.SetWriteDeadline(time.Now().Add(constants.BridgeConfig.WriteTimeout))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// ReadEnvelope blocks for the next client message.
func (c *Conn) ReadEnvelope() (*Envelope, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// WriteEnvelope sends one typed message to the client.
func (c *Conn) WriteEnvelope(typ string, data any) error {
	payload, err := Encode(typ, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(constants.BridgeConfig.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Conn) Close() error {
	c.pingOnce.Do(func() { close(c.pingStop) })
	return c.ws.Close()
}
