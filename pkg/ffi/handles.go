// Command ffi builds livegate as a C shared library.
//
// Build with:
//
//	CGO_ENABLED=1 go build -buildmode=c-shared -o liblivegate.so ./pkg/ffi/
//
// All inputs and outputs are C strings. Room info is JSON-serialized.
// Callers must free results with livegate_result_free.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jmylchreest/livegate/internal/version"
	"github.com/jmylchreest/livegate/pkg/live"
	"github.com/jmylchreest/livegate/pkg/livegate"
)

// main is required for c-shared build mode but should not be called.
func main() {}

// roomClient is the part of *livegate.Client the exports use.
type roomClient interface {
	GetInfo(ctx context.Context, ref string) (*live.Info, error)
	io.Closer
}

// clientHandles maps integer handles onto open clients.
type clientHandles struct {
	mu      sync.RWMutex
	clients map[int32]roomClient
	nextID  int32
}

var handles = newClientHandles()

func newClientHandles() *clientHandles {
	return &clientHandles{clients: make(map[int32]roomClient)}
}

func (h *clientHandles) add(c roomClient) int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.clients[h.nextID] = c
	return h.nextID
}

func (h *clientHandles) get(id int32) (roomClient, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}

func (h *clientHandles) remove(id int32) error {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("invalid client handle: %d", id)
	}
	return c.Close()
}

// openConfig is the JSON configuration for livegate_open.
type openConfig struct {
	Headless         *bool  `json:"headless"`
	ChromePath       string `json:"chrome_path"`
	UserAgent        string `json:"user_agent"`
	TimeoutMS        int    `json:"timeout_ms"`
	AttemptTimeoutMS int    `json:"attempt_timeout_ms"`
	MaxChallenges    *int   `json:"max_challenges"`
}

func parseOpenConfig(raw string) ([]livegate.Option, error) {
	if raw == "" {
		return nil, nil
	}
	var cfg openConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("invalid config json: %w", err)
	}

	var opts []livegate.Option
	if cfg.Headless != nil {
		opts = append(opts, livegate.WithHeadless(*cfg.Headless))
	}
	if cfg.ChromePath != "" {
		opts = append(opts, livegate.WithChromePath(cfg.ChromePath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, livegate.WithUserAgent(cfg.UserAgent))
	}
	if cfg.TimeoutMS > 0 {
		opts = append(opts, livegate.WithTimeout(time.Duration(cfg.TimeoutMS)*time.Millisecond))
	}
	if cfg.AttemptTimeoutMS > 0 {
		opts = append(opts, livegate.WithAttemptTimeout(time.Duration(cfg.AttemptTimeoutMS)*time.Millisecond))
	}
	if cfg.MaxChallenges != nil {
		opts = append(opts, livegate.WithMaxChallenges(*cfg.MaxChallenges))
	}
	return opts, nil
}

// open starts a client and returns its handle.
func open(configJSON string) (int32, error) {
	opts, err := parseOpenConfig(configJSON)
	if err != nil {
		return -1, err
	}
	c, err := livegate.New(context.Background(), opts...)
	if err != nil {
		return -1, err
	}
	return handles.add(c), nil
}

// lookup runs one room lookup and returns the info as JSON.
func (h *clientHandles) lookup(id int32, ref string) (string, error) {
	c, ok := h.get(id)
	if !ok {
		return "", fmt.Errorf("invalid client handle: %d", id)
	}
	info, err := c.GetInfo(context.Background(), ref)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func versionJSON() string {
	data, _ := json.Marshal(version.Get())
	return string(data)
}
