package viz

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/collab-canvas/pkg/canvas"
)

// RenderHistory draws the room's log as a chain in drawing order, and each undo stack as a chain
// from bottom to top hanging off a node named after its owner.
func RenderHistory(history canvas.History, w io.Writer) error {
	g := graphviz.New()
	defer g.Close()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	var edgeCounter uint64
	link := func(from, to *cgraph.Node) error {
		if from == nil {
			return nil
		}
		if _, err := graph.CreateEdge(strconv.FormatUint(atomic.AddUint64(&edgeCounter, 1), 10), from, to); err != nil {
			return fmt.Errorf("failed to create edge: %w", err)
		}
		return nil
	}

	root, err := graph.CreateNode("room")
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}
	root.SetLabel(fmt.Sprintf("room %s (%d ops)", history.RoomID, len(history.Operations)))

	prev := root
	for i, op := range history.Operations {
		n, err := graph.CreateNode("op:" + op.ID)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(label(i, op))
		if err := link(prev, n); err != nil {
			return err
		}
		prev = n
	}

	owners := make([]string, 0, len(history.UndoStacks))
	for owner := range history.UndoStacks {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		name := owner
		if name == "" {
			name = "room-wide"
		}
		head, err := graph.CreateNode("stack:" + name)
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		head.SetLabel("undo stack " + name)
		prev := head
		for i, op := range history.UndoStacks[owner] {
			n, err := graph.CreateNode("undone:" + name + ":" + op.ID)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}
			n.SetLabel(label(i, op))
			if err := link(prev, n); err != nil {
				return err
			}
			prev = n
		}
	}

	var buff bytes.Buffer
	if err := g.Render(graph, graphviz.SVG, &buff); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	if _, err := w.Write(buff.Bytes()); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

func label(i int, op canvas.Operation) string {
	author := op.AuthorID
	if len(author) > 8 {
		author = author[:8]
	}
	return fmt.Sprintf("#%d %s %s by %s (%d pts)", i, op.ID, op.Type, author, len(op.Points))
}

func RenderToTemp(history canvas.History) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	f, err := os.Create(tf)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tf, err)
	}
	defer f.Close()
	if err := RenderHistory(history, f); err != nil {
		return "", err
	}
	return tf, nil
}
