package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/wire"
)

const maxMessageSize = 64 * 1024

type Options struct {
	// AllowedOrigins restricts browser origins allowed to upgrade. Empty allows any.
	AllowedOrigins []string
	SendBuffer     int
	Logger         *slog.Logger
	Observer       DeliveryObserver
}

// Server upgrades HTTP requests to websockets and feeds their messages through the engine.
type Server struct {
	engine   *canvas.Engine
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
	tracer   trace.Tracer
	buffer   int

	// dispatch orders engine calls together with the queueing of their deliveries, so every
	// client observes room events in the order the engine produced them.
	dispatch sync.Mutex
	wg       sync.WaitGroup
}

func NewServer(engine *canvas.Engine, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: engine,
		hub:    NewHub(logger, opts.Observer),
		logger: logger,
		tracer: otel.Tracer("github.com/astromechza/collab-canvas/pkg/realtime"),
		buffer: opts.SendBuffer,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	ws, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade", "err", err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()

	conn := NewConnection(ws, s.buffer)
	s.hub.Attach(conn)
	conn.Start()
	s.logger.Info("connected", "conn", conn.ID, "remote", request.RemoteAddr)

	if err := s.readLoop(request.Context(), conn, ws); err != nil {
		s.logger.Error("connection failed", "conn", conn.ID, "err", err)
	}

	s.handle(context.Background(), conn.ID, canvas.KindDisconnect, func() []canvas.Delivery {
		return s.engine.Disconnect(conn.ID)
	})
	s.hub.Detach(conn)
	conn.Close(websocket.CloseNormalClosure, "")
	s.logger.Info("disconnected", "conn", conn.ID)
}

// Shutdown closes every connection and waits for their read loops to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) readLoop(ctx context.Context, conn *Connection, ws *websocket.Conn) error {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				select {
				case <-conn.Done():
					return nil
				default:
				}
				return err
			}
			return nil
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		s.receive(ctx, conn.ID, payload)
	}
}

func (s *Server) receive(ctx context.Context, connID string, payload []byte) {
	in, err := wire.Decode(payload)
	if err != nil {
		kind, reason := in.Type, canvas.ReasonInvalid
		if errors.Is(err, wire.ErrUnknownType) || kind == "" {
			// client-chosen type names are not used as labels
			kind, reason = "unknown", canvas.ReasonUnknown
		}
		_, span := s.tracer.Start(ctx, "canvas.rejected", trace.WithAttributes(
			attribute.String("canvas.conn", connID),
			attribute.String("canvas.kind", kind),
		))
		span.SetStatus(codes.Error, err.Error())
		span.End()
		s.engine.Reject(kind, reason)
		s.logger.Debug("dropped message", "conn", connID, "err", err)
		return
	}
	s.handle(ctx, connID, in.Type, func() []canvas.Delivery {
		return wire.Dispatch(s.engine, connID, in)
	})
}

func (s *Server) handle(ctx context.Context, connID, kind string, fn func() []canvas.Delivery) {
	_, span := s.tracer.Start(ctx, "canvas."+kind, trace.WithAttributes(
		attribute.String("canvas.conn", connID),
		attribute.String("canvas.kind", kind),
	))
	defer span.End()

	s.dispatch.Lock()
	deliveries := fn()
	s.hub.Deliver(deliveries)
	s.dispatch.Unlock()

	span.SetAttributes(attribute.Int("canvas.deliveries", len(deliveries)))
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
