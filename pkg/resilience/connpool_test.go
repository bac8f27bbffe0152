package resilience

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConnPoolGetReturnsSameConnForSameCredentialAndModel(t *testing.T) {
	p := &ConnPool{conns: make(map[string]*Conn)}
	cfg := PoolConfig{Credential: "key-a", Model: "gpt"}

	first := p.Get(cfg)
	second := p.Get(cfg)

	if first != second {
		t.Fatal("expected the same Conn for identical credential+model")
	}
}

func TestConnPoolGetIsolatesDistinctCredentials(t *testing.T) {
	p := &ConnPool{conns: make(map[string]*Conn)}

	a := p.Get(PoolConfig{Credential: "key-a", Model: "gpt"})
	b := p.Get(PoolConfig{Credential: "key-b", Model: "gpt"})

	if a == b {
		t.Fatal("expected distinct Conns for distinct credentials")
	}
}

func TestConnPoolGetIsolatesDistinctModels(t *testing.T) {
	p := &ConnPool{conns: make(map[string]*Conn)}

	a := p.Get(PoolConfig{Credential: "key-a", Model: "gpt-4"})
	b := p.Get(PoolConfig{Credential: "key-a", Model: "gpt-3.5"})

	if a == b {
		t.Fatal("expected distinct Conns for distinct models")
	}
}

func TestConnPoolReconfigureReplacesEntry(t *testing.T) {
	p := &ConnPool{conns: make(map[string]*Conn)}
	cfg := PoolConfig{Credential: "key-a", Model: "gpt"}

	original := p.Get(cfg)
	replaced := p.Reconfigure(PoolConfig{Credential: "key-a", Model: "gpt", MaxRetries: 5})

	if original == replaced {
		t.Fatal("expected Reconfigure to replace the pool entry")
	}
	if got := p.Get(cfg); got != replaced {
		t.Fatal("expected subsequent Get to return the reconfigured Conn")
	}
	if replaced.MaxRetries != 5 {
		t.Fatalf("expected reconfigured retry budget of 5, got %d", replaced.MaxRetries)
	}
}

func TestConnDoRetriesOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	conn := newConn(PoolConfig{MaxRetries: 2}.withDefaults())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("unexpected error building request: %v", err)
	}

	resp, err := conn.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestPoolConfigKeyDependsOnCredentialAndModel(t *testing.T) {
	a := PoolConfig{Credential: "x", Model: "m1"}.key()
	b := PoolConfig{Credential: "x", Model: "m2"}.key()
	c := PoolConfig{Credential: "x", Model: "m1"}.key()

	if a == b {
		t.Fatal("expected different models to hash differently")
	}
	if a != c {
		t.Fatal("expected identical credential+model to hash identically")
	}
}
