package resilience

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"sync"
	"time"
)

// PoolConfig describes the shared HTTP client a ConnPool should build for a
// given credential+model pairing.
type PoolConfig struct {
	// Credential identifies the account/API key in use; never logged.
	Credential string
	// Model identifies the target model or endpoint variant.
	Model string

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	ConnectTimeout      time.Duration
	ResponseTimeout     time.Duration
	PoolTimeout         time.Duration
	MaxRetries          int
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 64
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = 16
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 30 * time.Second
	}
	if c.PoolTimeout <= 0 {
		c.PoolTimeout = 90 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// key hashes credential+model into an opaque pool identity so the credential
// itself never appears in logs or map keys.
func (c PoolConfig) key() string {
	sum := sha256.Sum256([]byte(c.Credential + "\x00" + c.Model))
	return hex.EncodeToString(sum[:])
}

// Conn wraps a shared *http.Client with the retry budget its PoolConfig asked
// for; RoundTrip-level timeouts live on the transport, not on each call.
type Conn struct {
	Client     *http.Client
	MaxRetries int
}

// Do executes req, retrying idempotent-looking failures (network errors, no
// response at all) up to MaxRetries times with a short linear backoff.
// Non-nil HTTP responses are returned as-is on the first attempt that
// produces one; retry is about the transport, not status-code handling.
func (c *Conn) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		resp, err := c.Client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt < c.MaxRetries {
			time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
		}
	}
	return nil, lastErr
}

// ConnPool is a process-wide singleton of shared HTTP clients keyed by
// credential+model hash, so callers that share a credential and target model
// reuse one connection pool instead of opening a fresh one per request.
type ConnPool struct {
	mu    sync.Mutex
	conns map[string]*Conn
}

var defaultPool = &ConnPool{conns: make(map[string]*Conn)}

// DefaultConnPool returns the process-wide connection pool singleton.
func DefaultConnPool() *ConnPool { return defaultPool }

// Get returns the shared Conn for cfg's credential+model, building one on
// first use.
func (p *ConnPool) Get(cfg PoolConfig) *Conn {
	cfg = cfg.withDefaults()
	key := cfg.key()

	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[key]; ok {
		return conn
	}
	conn := newConn(cfg)
	p.conns[key] = conn
	return conn
}

// Reconfigure closes and replaces the pool entry for cfg's credential+model,
// so a changed timeout or retry budget takes effect on the next Get.
func (p *ConnPool) Reconfigure(cfg PoolConfig) *Conn {
	cfg = cfg.withDefaults()
	key := cfg.key()

	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.conns[key]; ok {
		old.Client.CloseIdleConnections()
	}
	conn := newConn(cfg)
	p.conns[key] = conn
	return conn
}

func newConn(cfg PoolConfig) *Conn {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.PoolTimeout,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
	}
	return &Conn{
		Client: &http.Client{
			Transport: transport,
			Timeout:   cfg.ResponseTimeout,
		},
		MaxRetries: cfg.MaxRetries,
	}
}
