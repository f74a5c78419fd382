package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/astromechza/collab-canvas/pkg/canvas"
	"github.com/astromechza/collab-canvas/pkg/export"
	"github.com/astromechza/collab-canvas/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// mainInner reads a room dump (a history written by the server's --dump-on-exit, or a snapshot
// fetched from /rooms/{room}/snapshot) and renders it back out as svg and pdf.
func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("expected one position argument: the file to read")
	}
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()
	buff, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var history canvas.History
	if err := json.Unmarshal(buff, &history); err != nil {
		return fmt.Errorf("failed to decode room: %w", err)
	}
	buff = nil
	slog.Info("loaded room", "room", history.RoomID, "ops", len(history.Operations), "participants", len(history.Participants), "stacks", len(history.UndoStacks))

	for i, op := range history.Operations {
		slog.Info("op", "i", fmt.Sprintf("%4d", i), "id", op.ID, "author", op.AuthorID, "type", op.Type, "color", op.Color, "width", op.Width, "points", len(op.Points))
	}
	for owner, stack := range history.UndoStacks {
		slog.Info("undo stack", "owner", owner, "depth", len(stack))
	}

	svgPath, err := viz.RenderToTemp(history)
	if err != nil {
		return err
	}
	slog.Info("rendered history", "path", "file://"+svgPath)

	pdfPath := strings.TrimSuffix(svgPath, filepath.Ext(svgPath)) + ".pdf"
	out, err := os.Create(pdfPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", pdfPath, err)
	}
	defer out.Close()
	if err := export.WritePDF(out, history.Snapshot); err != nil {
		return err
	}
	slog.Info("exported canvas", "path", "file://"+pdfPath)
	return nil
}
