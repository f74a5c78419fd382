// Package config resolves server settings from defaults, an optional .env file and CANVAS_*
// environment variables. Command-line flags are bound on top by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/astromechza/collab-canvas/pkg/canvas"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Addr             string
	MaxOps           int
	LiveInterval     time.Duration
	MinPointDistance float64
	UndoScope        string
	ClearPolicy      string
	DefaultRoom      string
	AllowedOrigins   []string
	SendBuffer       int
	MDNS             bool
	LogLevel         string
}

func Default() Config {
	return Config{
		Addr:             "localhost:8080",
		MaxOps:           canvas.MaxOps,
		LiveInterval:     canvas.DefaultLiveInterval,
		MinPointDistance: canvas.DefaultMinPointDistance,
		UndoScope:        string(canvas.UndoPerAuthor),
		ClearPolicy:      string(canvas.ClearBrushOnly),
		DefaultRoom:      canvas.DefaultRoomID,
		SendBuffer:       128,
		LogLevel:         "info",
	}
}

// Load returns the defaults overridden by the environment. A .env file in the working directory is
// read first if present; variables already set in the process take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv applies CANVAS_* variables from lookup over Default().
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
				return
			}
			*dst = n
		}
	}

	str("CANVAS_ADDR", &c.Addr)
	integer("CANVAS_MAX_OPS", &c.MaxOps)
	integer("CANVAS_SEND_BUFFER", &c.SendBuffer)
	str("CANVAS_UNDO_SCOPE", &c.UndoScope)
	str("CANVAS_CLEAR_POLICY", &c.ClearPolicy)
	str("CANVAS_DEFAULT_ROOM", &c.DefaultRoom)
	str("CANVAS_LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup("CANVAS_LIVE_INTERVAL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: CANVAS_LIVE_INTERVAL: %v", ErrInvalid, err))
		} else {
			c.LiveInterval = d
		}
	}
	if v, ok := lookup("CANVAS_MIN_POINT_DISTANCE"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: CANVAS_MIN_POINT_DISTANCE: %v", ErrInvalid, err))
		} else {
			c.MinPointDistance = f
		}
	}
	if v, ok := lookup("CANVAS_MDNS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: CANVAS_MDNS: %v", ErrInvalid, err))
		} else {
			c.MDNS = b
		}
	}
	if v, ok := lookup("CANVAS_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = SplitList(v)
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, fmt.Errorf("%w: addr must not be empty", ErrInvalid))
	}
	if c.MaxOps <= 0 {
		errs = append(errs, fmt.Errorf("%w: max ops must be positive, got %d", ErrInvalid, c.MaxOps))
	}
	if c.LiveInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: live interval must not be negative", ErrInvalid))
	}
	if c.MinPointDistance < 0 {
		errs = append(errs, fmt.Errorf("%w: min point distance must not be negative", ErrInvalid))
	}
	if c.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("%w: send buffer must be positive, got %d", ErrInvalid, c.SendBuffer))
	}
	if _, err := canvas.ParseUndoScope(c.UndoScope); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalid, err))
	}
	if _, err := canvas.ParseClearPolicy(c.ClearPolicy); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalid, err))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level: %v", ErrInvalid, err)
	}
	return lvl, nil
}

// RoomOptions converts the config for the canvas registry. Call Validate first.
func (c Config) RoomOptions() canvas.RoomOptions {
	scope, _ := canvas.ParseUndoScope(c.UndoScope)
	policy, _ := canvas.ParseClearPolicy(c.ClearPolicy)
	return canvas.RoomOptions{
		MaxOps:           c.MaxOps,
		UndoScope:        scope,
		ClearPolicy:      policy,
		LiveInterval:     c.LiveInterval,
		MinPointDistance: c.MinPointDistance,
	}
}
