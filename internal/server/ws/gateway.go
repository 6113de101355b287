// Package ws is the websocket face of the realtime channel, for devices
// that cannot hold a gRPC stream (browsers). It carries the same SyncEvent
// as the gRPC Subscribe stream, framed as JSON.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/server/auth"
	"github.com/dmitrijs2005/shopsync/internal/server/realtime"
	"github.com/gorilla/websocket"
)

const (
	MessageSubscribed    = "subscribed"
	MessageRecordsSynced = "records_synced"
	MessageEvicted       = "evicted"
	MessageError         = "error"
)

// Message is one JSON frame sent to the browser.
type Message struct {
	Type  string           `json:"type"`
	Kind  string           `json:"kind,omitempty"`
	Event *proto.SyncEvent `json:"event,omitempty"`
	Error string           `json:"error,omitempty"`
}

type Subscriber interface {
	Subscribe(owner, kind, device string) (*realtime.Subscription, error)
	Unsubscribe(sub *realtime.Subscription)
}

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{PingInterval: 30 * time.Second, WriteTimeout: 10 * time.Second}
}

type Gateway struct {
	address   string
	subs      Subscriber
	jwtSecret []byte
	cfg       Config
	logger    logging.Logger
	upgrader  websocket.Upgrader
}

func NewGateway(address string, subs Subscriber, secretKey string, cfg Config, logger logging.Logger) *Gateway {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	return &Gateway{
		address:   address,
		subs:      subs,
		jwtSecret: []byte(secretKey),
		cfg:       cfg,
		logger:    logger.With("module", "ws_gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.serveWS)
	return mux
}

// Run serves until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.address)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: g.Handler(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		g.logger.Info(context.Background(), "Stopping websocket gateway...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	g.logger.Info(ctx, "Starting websocket gateway", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get(common.AccessTokenHeaderName)
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	owner, err := auth.GetUserIDFromToken(token, g.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			http.Error(w, common.ErrTokenExpired.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, common.ErrInvalidToken.Error(), http.StatusUnauthorized)
		return
	}

	kind := r.URL.Query().Get("kind")
	device := r.URL.Query().Get(common.DeviceIDHeaderName)

	sub, err := g.subs.Subscribe(owner, kind, device)
	if err != nil {
		if errors.Is(err, common.ErrUnknownKind) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer g.subs.Unsubscribe(sub)

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn(r.Context(), "upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Browsers only listen; reading is how a close from their side is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := g.write(conn, Message{Type: MessageSubscribed, Kind: kind}); err != nil {
		return
	}
	g.forward(ctx, conn, sub, kind)
}

func (g *Gateway) forward(ctx context.Context, conn *websocket.Conn, sub *realtime.Subscription, kind string) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				if sub.Evicted() {
					_ = g.write(conn, Message{Type: MessageEvicted, Kind: kind, Error: "subscriber too slow, pull to catch up"})
				}
				return
			}
			if err := g.write(conn, Message{Type: MessageRecordsSynced, Kind: kind, Event: ev}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) write(conn *websocket.Conn, m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
