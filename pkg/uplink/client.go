// Package uplink streams device events and recorded speech to a voice
// server over a websocket and receives synthesized speech back.
package uplink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/lokutor-ai/audio-manager/pkg/audio"
	"github.com/lokutor-ai/audio-manager/pkg/logging"
)

// ErrServer wraps ERR: control frames sent by the server
var ErrServer = errors.New("voice server error")

const readLimit = 10 * 1024 * 1024

// Message is the JSON text frame exchanged with the server
type Message struct {
	Type          string  `json:"type"`
	Session       string  `json:"session"`
	Event         string  `json:"event,omitempty"`
	WakeWordIndex int     `json:"wake_word_index,omitempty"`
	VolumeDB      float64 `json:"volume_db,omitempty"`
	SampleRate    int     `json:"sample_rate,omitempty"`
}

// Config configures a Client
type Config struct {
	// URL is the ws:// or wss:// endpoint
	URL        string
	APIKey     string
	SampleRate int
	Logger     logging.Logger
}

// Client holds one lazily dialled connection
type Client struct {
	cfg     Config
	logger  logging.Logger
	session string

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(cfg Config) *Client {
	return &Client{
		cfg:     cfg,
		logger:  logging.OrNoOp(cfg.Logger),
		session: uuid.NewString(),
	}
}

// Session returns the id sent with every message
func (c *Client) Session() string {
	return c.session
}

func (c *Client) getConn(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid uplink url: %w", err)
	}
	q := u.Query()
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	q.Set("session", c.session)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to voice server: %w", err)
	}
	conn.SetReadLimit(readLimit)

	hello := Message{Type: "hello", Session: c.session, SampleRate: c.cfg.SampleRate}
	if err := wsjson.Write(ctx, conn, hello); err != nil {
		conn.Close(websocket.StatusAbnormalClosure, "failed to write hello")
		return nil, fmt.Errorf("failed to send hello: %w", err)
	}

	c.logger.Info("uplink connected", "host", u.Host, "session", c.session)
	c.conn = conn
	return conn, nil
}

// Connect dials the server if not already connected
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.getConn(ctx)
	return err
}

// SendEvent reports a device event by name
func (c *Client) SendEvent(ctx context.Context, event string, wakeWordIndex int, volumeDB float64) error {
	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}
	msg := Message{
		Type:          "event",
		Session:       c.session,
		Event:         event,
		WakeWordIndex: wakeWordIndex,
		VolumeDB:      volumeDB,
	}
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		c.drop(conn, "failed to write event")
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

// SendAudio streams one frame of recorded PCM
func (c *Client) SendAudio(ctx context.Context, pcm []int16) error {
	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageBinary, audio.Int16ToBytes(pcm)); err != nil {
		c.drop(conn, "failed to write audio")
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// Receive reads one server response, handing each binary chunk to onAudio,
// until the server sends EOS.
func (c *Client) Receive(ctx context.Context, onAudio func(pcm []int16) error) error {
	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			c.drop(conn, "failed to read")
			return fmt.Errorf("failed to read from voice server: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onAudio(audio.BytesToInt16(payload)); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if strings.HasPrefix(msg, "ERR:") {
				return fmt.Errorf("%w: %s", ErrServer, strings.TrimSpace(msg[4:]))
			}
			c.logger.Debug("uplink control frame ignored", "size", len(payload))
		}
	}
}

func (c *Client) drop(conn *websocket.Conn, reason string) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close(websocket.StatusAbnormalClosure, reason)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close(websocket.StatusNormalClosure, "")
		c.conn = nil
		return err
	}
	return nil
}
