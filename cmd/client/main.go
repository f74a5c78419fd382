package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/discovery"
	"github.com/astromechza/collab-canvas/pkg/wire"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "127.0.0.1:8080", "the address to connect to")
	roomVar := flag.String("room", "", "the room to join (default the server's default room)")
	nameVar := flag.String("name", "", "the display name to join with")
	discoverVar := flag.Bool("discover", false, "find the server over mDNS instead of using -addr")
	flag.Parse()

	addr := *addrVar
	if *discoverVar {
		found, err := discovery.Browse(3 * time.Second)
		if err != nil {
			return err
		}
		slog.Info("discovered server", "addr", found)
		addr = found
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	c := &client{conn: conn, color: fmt.Sprintf("hsl(%d 85%% 55%%)", rand.Intn(360))}
	if err := c.send(canvas.KindJoin, canvas.JoinRequest{RoomID: *roomVar, DisplayName: *nameVar, ColorHint: c.color}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := c.readContinuously(); err != nil {
			slog.Error("connection lost", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.drawRandomlyContinuously(ctx)
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("Signal caught", "sig", sig)
	case <-ctx.Done():
	}
	cancel()

	c.mu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.mu.Unlock()
	_ = conn.Close()
	wg.Wait()
	return nil
}

type client struct {
	conn  *websocket.Conn
	color string
	// gorilla connections support one concurrent writer
	mu sync.Mutex
}

func (c *client) send(kind string, data any) error {
	raw, err := wire.Message(kind, data)
	if err != nil {
		return err
	}
	return c.write(raw)
}

func (c *client) write(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

func (c *client) readContinuously() error {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		env, err := wire.DecodeEnvelope(raw)
		if err != nil {
			slog.Error("bad message", "err", err)
			continue
		}
		switch env.Type {
		case canvas.KindSnapshot:
			var snap canvas.Snapshot
			if err := env.Into(&snap); err != nil {
				slog.Error("bad snapshot", "err", err)
				continue
			}
			slog.Info("snapshot", "room", snap.RoomID, "self", snap.SelfID, "ops", len(snap.Operations), "participants", len(snap.Participants))
		case canvas.KindStrokeCreated:
			var op canvas.Operation
			if err := env.Into(&op); err != nil {
				slog.Error("bad stroke", "err", err)
				continue
			}
			slog.Info("stroke created", "id", op.ID, "author", op.AuthorID, "type", op.Type, "points", len(op.Points))
		case canvas.KindParticipantsUpdate:
			var ev canvas.ParticipantsUpdateEvent
			if err := env.Into(&ev); err != nil {
				slog.Error("bad participants", "err", err)
				continue
			}
			slog.Info("participants", "room", ev.RoomID, "count", len(ev.Participants))
		default:
			slog.Debug("event", "type", env.Type)
		}
	}
}

// drawRandomlyContinuously draws a wobbly line every few seconds, streaming it as live segments
// before committing it, and now and then undoes or redoes.
func (c *client) drawRandomlyContinuously(ctx context.Context) {
	for {
		t := time.NewTimer(time.Second + time.Second*time.Duration(rand.Intn(3)))
		select {
		case <-t.C:
			var err error
			switch n := rand.Intn(10); {
			case n == 0:
				err = c.send(canvas.KindUndo, nil)
				slog.Info("undo")
			case n == 1:
				err = c.send(canvas.KindRedo, nil)
				slog.Info("redo")
			default:
				err = c.drawStroke(ctx)
			}
			if err != nil {
				slog.Error("failed to draw", "err", err)
			}
		case <-ctx.Done():
			t.Stop()
			slog.Info("stopping scheduled drawing")
			return
		}
	}
}

func (c *client) drawStroke(ctx context.Context) error {
	stroke := canvas.StrokeCandidate{
		ID:    ksuid.New().String(),
		Type:  canvas.Brush,
		Color: c.color,
		Width: float64(2 + rand.Intn(10)),
	}
	x, y := rand.Float64()*800, rand.Float64()*600
	angle := rand.Float64() * 2 * math.Pi
	for i := 0; i < 4; i++ {
		segment := make([]canvas.Point, 0, canvas.MaxLivePoints)
		for j := 0; j < canvas.MaxLivePoints; j++ {
			angle += rand.Float64() - 0.5
			x, y = x+math.Cos(angle)*8, y+math.Sin(angle)*8
			segment = append(segment, canvas.Point{X: x, Y: y})
		}
		stroke.Points = append(stroke.Points, segment...)
		live := stroke
		live.Points = segment
		raw, err := wire.StrokeMessage(canvas.KindStrokeLive, live)
		if err != nil {
			return err
		}
		if err := c.write(raw); err != nil {
			return err
		}
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return c.send(canvas.KindStrokeLiveEnd, map[string]string{"strokeId": stroke.ID})
		}
	}
	raw, err := wire.StrokeMessage(canvas.KindStrokeEnd, stroke)
	if err != nil {
		return err
	}
	slog.Info("drew stroke", "id", stroke.ID, "points", len(stroke.Points))
	return c.write(raw)
}
