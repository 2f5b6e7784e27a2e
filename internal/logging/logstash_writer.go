// Package logging ships log output to a Logstash TCP input.
package logging

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

var errCoolingDown = errors.New("logstash: waiting before reconnect")

type LogstashConfig struct {
	Addr string
	// Service is stamped on every event as "service".
	Service       string
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	RetryInterval time.Duration
}

// LogstashWriter turns each written log line into one JSON event on a TCP
// connection. Writes never fail because Logstash is away; events are dropped
// until the connection comes back.
type LogstashWriter struct {
	cfg LogstashConfig
	now func() time.Time

	mu        sync.Mutex
	conn      net.Conn
	nextRetry time.Time
	closed    bool
}

type logstashEvent struct {
	Timestamp string `json:"@timestamp"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLogstashWriter(cfg LogstashConfig) (*LogstashWriter, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("logstash: empty address")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = time.Second
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	return &LogstashWriter{cfg: cfg, now: time.Now}, nil
}

func (w *LogstashWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\r\n")
	if msg == "" {
		return len(p), nil
	}
	event, err := json.Marshal(logstashEvent{
		Timestamp: w.now().UTC().Format(time.RFC3339Nano),
		Service:   w.cfg.Service,
		Message:   msg,
	})
	if err != nil {
		return 0, err
	}
	event = append(event, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, io.ErrClosedPipe
	}
	if err := w.connectLocked(); err != nil {
		return len(p), nil
	}
	_ = w.conn.SetWriteDeadline(w.now().Add(w.cfg.WriteTimeout))
	if _, err := w.conn.Write(event); err != nil {
		w.dropLocked()
	}
	return len(p), nil
}

func (w *LogstashWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (w *LogstashWriter) connectLocked() error {
	if w.conn != nil {
		return nil
	}
	if w.now().Before(w.nextRetry) {
		return errCoolingDown
	}
	conn, err := net.DialTimeout("tcp", w.cfg.Addr, w.cfg.DialTimeout)
	if err != nil {
		w.nextRetry = w.now().Add(w.cfg.RetryInterval)
		return err
	}
	w.conn = conn
	w.nextRetry = time.Time{}
	return nil
}

// dropLocked forgets a broken connection and starts the reconnect cool-down.
func (w *LogstashWriter) dropLocked() {
	_ = w.conn.Close()
	w.conn = nil
	w.nextRetry = w.now().Add(w.cfg.RetryInterval)
}
