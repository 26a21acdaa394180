package fyers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultSocketURL = "wss://api-t1.fyers.in/data/stream"

type subscribeRequest struct {
	Type     string   `json:"type"`
	Symbols  []string `json:"symbols"`
	DataType string   `json:"dataType"`
}

// DataSocket is a single connection to the provider's push feed. It only
// handles the wire; reconnect policy lives in DataStream.
type DataSocket struct {
	url   string
	creds Credentials
	conn  *websocket.Conn
}

func NewDataSocket(url string, creds Credentials) *DataSocket {
	if strings.TrimSpace(url) == "" {
		url = DefaultSocketURL
	}
	return &DataSocket{url: url, creds: creds}
}

func (s *DataSocket) Connect(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("data socket is nil")
	}
	header := http.Header{}
	header.Set("Authorization", s.creds.authHeader())
	conn, _, err := websocket.Dial(ctx, s.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return err
	}
	// Bulk symbol updates arrive as one frame; raise read limit above default.
	conn.SetReadLimit(1 << 20) // 1MB
	s.conn = conn
	return nil
}

func (s *DataSocket) Close(status websocket.StatusCode, reason string) error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close(status, reason)
}

// Subscribe requests symbol-level updates for the given instruments.
func (s *DataSocket) Subscribe(ctx context.Context, symbols []string) error {
	if s == nil || s.conn == nil {
		return fmt.Errorf("data socket not connected")
	}
	req := subscribeRequest{
		Type:     "subscribe",
		Symbols:  symbols,
		DataType: "SymbolUpdate",
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, payload)
}

func (s *DataSocket) Read(ctx context.Context) ([]byte, error) {
	if s == nil || s.conn == nil {
		return nil, fmt.Errorf("data socket not connected")
	}
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *DataSocket) respondPong(ctx context.Context) error {
	if s == nil || s.conn == nil {
		return fmt.Errorf("data socket not connected")
	}
	return s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"pong"}`))
}

type StreamOptions struct {
	URL               string
	Symbols           []string
	ReconnectWait     time.Duration
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	OnConnect         func()
	Logger            *zap.Logger
}

// DataStream keeps a DataSocket alive for the life of its context. Every
// disconnect, whatever the cause, is followed by the same fixed wait and
// a fresh dial plus resubscribe.
type DataStream struct {
	creds     Credentials
	opts      StreamOptions
	seenFirst bool
}

func NewDataStream(creds Credentials, opts StreamOptions) *DataStream {
	if opts.URL == "" {
		opts.URL = DefaultSocketURL
	}
	if opts.ReconnectWait == 0 {
		opts.ReconnectWait = 5 * time.Second
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = 5 * time.Second
	}
	return &DataStream{creds: creds, opts: opts}
}

func (s *DataStream) Run(ctx context.Context, onMessage func(raw []byte)) error {
	if s == nil {
		return fmt.Errorf("data stream is nil")
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		socket := NewDataSocket(s.opts.URL, s.creds)
		if err := socket.Connect(ctx); err != nil {
			if s.opts.Logger != nil {
				s.opts.Logger.Warn("data socket connect failed", zap.Error(err))
			}
			if err := waitReconnect(ctx, s.opts.ReconnectWait); err != nil {
				return err
			}
			continue
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Info("data socket connected")
		}
		if len(s.opts.Symbols) > 0 {
			if err := socket.Subscribe(ctx, s.opts.Symbols); err != nil {
				if s.opts.Logger != nil {
					s.opts.Logger.Warn("data socket subscribe failed", zap.Error(err))
				}
				_ = socket.Close(websocket.StatusInternalError, "subscribe failed")
				if err := waitReconnect(ctx, s.opts.ReconnectWait); err != nil {
					return err
				}
				continue
			}
			if s.opts.Logger != nil {
				s.opts.Logger.Info("data socket subscribed", zap.Int("symbols", len(s.opts.Symbols)))
			}
		}
		if s.opts.OnConnect != nil {
			s.opts.OnConnect()
		}

		err := s.consume(ctx, socket, onMessage)
		_ = socket.Close(websocket.StatusNormalClosure, "reconnect")
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Warn("data socket disconnected", zap.Error(err), zap.Duration("retry_in", s.opts.ReconnectWait))
		}
		if err := waitReconnect(ctx, s.opts.ReconnectWait); err != nil {
			return err
		}
	}
}

func (s *DataStream) consume(ctx context.Context, socket *DataSocket, onMessage func(raw []byte)) error {
	if socket == nil {
		return fmt.Errorf("data socket is nil")
	}
	heartbeatErr := make(chan error, 1)
	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(s.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				heartbeatErr <- heartbeatCtx.Err()
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(heartbeatCtx, s.opts.PingTimeout)
				err := socket.conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					heartbeatErr <- err
					return
				}
			}
		}
	}()

	for {
		select {
		case err := <-heartbeatErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		default:
		}
		raw, err := socket.Read(ctx)
		if err != nil {
			if s.opts.Logger != nil && !errors.Is(err, context.Canceled) {
				s.opts.Logger.Warn("data socket read failed", zap.Error(err))
			}
			return err
		}
		if isPingFrame(raw) {
			_ = socket.respondPong(ctx)
			continue
		}
		if s.opts.Logger != nil && !s.seenFirst {
			s.seenFirst = true
			s.opts.Logger.Info("data socket first message", zap.Int("bytes", len(raw)))
		}
		if onMessage != nil {
			onMessage(raw)
		}
	}
}

func isPingFrame(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(string(raw)), "ping") {
		return true
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		return strings.EqualFold(probe.Type, "ping")
	}
	return false
}

func waitReconnect(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
