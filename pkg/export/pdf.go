// Package export renders a room snapshot to a printable document.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/astromechza/collab-canvas/pkg/canvas"
)

const (
	margin = 10.0 // mm
	// pxToMM assumes 96 dpi canvas pixels.
	pxToMM = 25.4 / 96
)

// WritePDF replays the snapshot's operations in log order onto a single A4 page. Erasers are drawn
// in white, which matches how they composite on a blank canvas.
func WritePDF(w io.Writer, snap canvas.Snapshot) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle("canvas "+snap.RoomID, true)
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	pageW, pageH := pdf.GetPageSize()
	minX, minY, maxX, maxY, ok := bounds(snap.Operations)
	scale := pxToMM
	if ok {
		spanX, spanY := math.Max(maxX-minX, 1), math.Max(maxY-minY, 1)
		scale = math.Min(scale, math.Min((pageW-2*margin)/spanX, (pageH-2*margin)/spanY))
	}
	tx := func(p canvas.Point) (float64, float64) {
		return margin + (p.X-minX)*scale, margin + (p.Y-minY)*scale
	}

	for _, op := range snap.Operations {
		r, g, b := 255, 255, 255
		if op.Type == canvas.Brush {
			r, g, b = ParseColor(op.Color)
		}
		pdf.SetDrawColor(r, g, b)
		pdf.SetFillColor(r, g, b)
		width := op.Width * scale
		pdf.SetLineWidth(width)
		if len(op.Points) == 1 {
			x, y := tx(op.Points[0])
			pdf.Circle(x, y, width/2, "F")
			continue
		}
		for i := 1; i < len(op.Points); i++ {
			x1, y1 := tx(op.Points[i-1])
			x2, y2 := tx(op.Points[i])
			pdf.Line(x1, y1, x2, y2)
		}
	}

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.Text(margin, pageH-margin/2, fmt.Sprintf("%s: %d strokes", snap.RoomID, len(snap.Operations)))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func bounds(ops []canvas.Operation) (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, op := range ops {
		half := op.Width / 2
		for _, p := range op.Points {
			minX, maxX = math.Min(minX, p.X-half), math.Max(maxX, p.X+half)
			minY, maxY = math.Min(minY, p.Y-half), math.Max(maxY, p.Y+half)
			ok = true
		}
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX, maxY, true
}

// ParseColor understands #rgb, #rrggbb and hsl(h s% l%) (with or without commas). Anything else
// is black.
func ParseColor(s string) (r, g, b int) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case strings.HasPrefix(s, "#"):
		hex := s[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) != 6 {
			return 0, 0, 0
		}
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return 0, 0, 0
		}
		return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
	case strings.HasPrefix(s, "hsl(") && strings.HasSuffix(s, ")"):
		fields := strings.FieldsFunc(s[4:len(s)-1], func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) < 3 {
			return 0, 0, 0
		}
		h, err1 := strconv.ParseFloat(strings.TrimSuffix(fields[0], "deg"), 64)
		sat, err2 := strconv.ParseFloat(strings.TrimSuffix(fields[1], "%"), 64)
		light, err3 := strconv.ParseFloat(strings.TrimSuffix(fields[2], "%"), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, 0, 0
		}
		return hslToRGB(h, sat/100, light/100)
	}
	return 0, 0, 0
}

func hslToRGB(h, s, l float64) (int, int, int) {
	h = math.Mod(math.Mod(h, 360)+360, 360)
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	to := func(v float64) int { return int(math.Round((v + m) * 255)) }
	return to(r), to(g), to(b)
}
