package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/config"
	"github.com/astromechza/collab-canvas/pkg/discovery"
	"github.com/astromechza/collab-canvas/pkg/export"
	"github.com/astromechza/collab-canvas/pkg/metrics"
	"github.com/astromechza/collab-canvas/pkg/realtime"
	"github.com/astromechza/collab-canvas/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	var origins string
	var statsEvery time.Duration
	var dumpOnExit bool

	cmd := &cobra.Command{
		Use:           "canvasd",
		Short:         "Real-time collaborative canvas server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("allowed-origins") {
				cfg.AllowedOrigins = config.SplitList(origins)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, statsEvery, dumpOnExit)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "the address to listen on")
	f.IntVar(&cfg.MaxOps, "max-ops", cfg.MaxOps, "committed strokes kept per room")
	f.DurationVar(&cfg.LiveInterval, "live-interval", cfg.LiveInterval, "minimum spacing of live broadcasts per stroke")
	f.Float64Var(&cfg.MinPointDistance, "min-point-distance", cfg.MinPointDistance, "live points closer than this to the previous one are dropped")
	f.StringVar(&cfg.UndoScope, "undo-scope", cfg.UndoScope, "per-author or global")
	f.StringVar(&cfg.ClearPolicy, "clear-policy", cfg.ClearPolicy, "brush-only or all")
	f.StringVar(&cfg.DefaultRoom, "default-room", cfg.DefaultRoom, "room used when a join names none; never destroyed")
	f.StringVar(&origins, "allowed-origins", "", "comma separated browser origins allowed to connect (default any)")
	f.IntVar(&cfg.SendBuffer, "send-buffer", cfg.SendBuffer, "outbound messages queued per client before it is dropped")
	f.BoolVar(&cfg.MDNS, "mdns", cfg.MDNS, "advertise the server over mDNS")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.DurationVar(&statsEvery, "stats-interval", 30*time.Second, "how often room statistics are logged (0 disables)")
	f.BoolVar(&dumpOnExit, "dump-on-exit", false, "write every room's history as json and svg to the temp dir on shutdown")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return cmd.ExecuteContext(ctx)
}

func serve(ctx context.Context, cfg config.Config, statsEvery time.Duration, dumpOnExit bool) error {
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(reg)

	engine := canvas.NewEngine(
		canvas.NewRegistry(cfg.DefaultRoom, cfg.RoomOptions()),
		canvas.WithObserver(collector),
		canvas.WithLogger(logger),
	)
	ws := realtime.NewServer(engine, realtime.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SendBuffer:     cfg.SendBuffer,
		Logger:         logger,
		Observer:       collector,
	})
	r := buildRouter(engine, ws, reg)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Info("listening", "addr", listener.Addr().String(), "undo", cfg.UndoScope, "clear", cfg.ClearPolicy)

	if cfg.MDNS {
		port := listener.Addr().(*net.TCPAddr).Port
		if adv, err := discovery.Advertise(port, cfg.DefaultRoom); err != nil {
			slog.Error("failed to advertise", "err", err)
		} else {
			defer func() {
				_ = adv.Shutdown()
			}()
		}
	}

	wg := new(sync.WaitGroup)

	if statsEvery > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTicker(statsEvery)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					for _, info := range engine.Rooms() {
						slog.Info("room", "id", info.ID, "participants", info.Participants, "ops", info.Operations, "live", info.LiveStrokes)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	httpServer := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// hijacked websocket connections are not tracked by http.Server
	if err := ws.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to close connections", "err", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown http server", "err", err)
	}
	wg.Wait()

	if dumpOnExit {
		dumpRooms(engine)
	}
	return nil
}

func dumpRooms(engine *canvas.Engine) {
	for _, info := range engine.Rooms() {
		history, ok := engine.History(info.ID)
		if !ok {
			continue
		}
		tf := filepath.Join(os.TempDir(), "canvas-"+strconv.FormatInt(time.Now().UnixNano(), 10)+".json")
		raw, err := json.MarshalIndent(history, "", "  ")
		if err != nil {
			slog.Error("failed to dump", "room", info.ID, "err", err)
			continue
		}
		if err := os.WriteFile(tf, raw, 0o644); err != nil {
			slog.Error("failed to dump", "room", info.ID, "err", err)
			continue
		}
		slog.Info("dumped", "room", info.ID, "path", tf)
		if svgPath, err := viz.RenderToTemp(history); err != nil {
			slog.Error("failed to render", "room", info.ID, "err", err)
		} else {
			slog.Info("rendered", "room", info.ID, "path", "file://"+svgPath)
		}
	}
}

type server struct {
	engine *canvas.Engine
}

func buildRouter(engine *canvas.Engine, ws http.Handler, reg *prometheus.Registry) *mux.Router {
	s := &server{engine: engine}
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/ws").Handler(ws)
	r.Methods(http.MethodGet).Path("/rooms").HandlerFunc(s.listRooms)
	r.Methods(http.MethodGet).Path("/rooms/{room}/snapshot").HandlerFunc(s.getSnapshot)
	r.Methods(http.MethodGet).Path("/rooms/{room}/export.pdf").HandlerFunc(s.exportPDF)
	r.Methods(http.MethodGet).Path("/rooms/{room}/history.svg").HandlerFunc(s.renderHistory)
	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	})
	return r
}

func (s *server) listRooms(writer http.ResponseWriter, request *http.Request) {
	writeJSON(writer, s.engine.Rooms())
}

func (s *server) getSnapshot(writer http.ResponseWriter, request *http.Request) {
	snap, ok := s.engine.Snapshot(mux.Vars(request)["room"])
	if !ok {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(writer, snap)
}

func (s *server) exportPDF(writer http.ResponseWriter, request *http.Request) {
	snap, ok := s.engine.Snapshot(mux.Vars(request)["room"])
	if !ok {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writer.Header().Set("Content-Type", "application/pdf")
	if err := export.WritePDF(writer, snap); err != nil {
		slog.Error("failed to export", "room", snap.RoomID, "err", err)
	}
}

func (s *server) renderHistory(writer http.ResponseWriter, request *http.Request) {
	history, ok := s.engine.History(mux.Vars(request)["room"])
	if !ok {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writer.Header().Set("Content-Type", "image/svg+xml")
	if err := viz.RenderHistory(history, writer); err != nil {
		slog.Error("failed to render", "room", history.RoomID, "err", err)
	}
}

func writeJSON(writer http.ResponseWriter, v any) {
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}
