package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeEngine is a minimal in-memory control API.
type fakeEngine struct {
	mu    sync.Mutex
	peers map[string]Peer
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{peers: make(map[string]Peer)}
}

func (f *fakeEngine) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/peers", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			var p Peer
			if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if _, ok := f.peers[p.ID]; ok {
				w.WriteHeader(http.StatusConflict)
				return
			}
			f.peers[p.ID] = p
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			out := make([]Peer, 0, len(f.peers))
			for _, p := range f.peers {
				out = append(out, p)
			}
			json.NewEncoder(w).Encode(out)
		}
	})
	mux.HandleFunc("/peers/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/peers/")
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.peers[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.peers, id)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func TestAddPeerIdempotent(t *testing.T) {
	srv := httptest.NewServer(newFakeEngine().handler())
	defer srv.Close()
	c := NewClient(srv.URL, "")

	peer := Peer{ID: "k1", PublicKey: "pub1", AllowedIP: "10.8.0.2/32"}
	state, err := c.AddPeer(context.Background(), peer)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if state != PeerAdded {
		t.Errorf("first add state = %v, want PeerAdded", state)
	}
	state, err = c.AddPeer(context.Background(), peer)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if state != PeerAlreadyPresent {
		t.Errorf("second add state = %v, want PeerAlreadyPresent", state)
	}
}

func TestRemovePeerIdempotent(t *testing.T) {
	fe := newFakeEngine()
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()
	c := NewClient(srv.URL, "")

	if _, err := c.AddPeer(context.Background(), Peer{ID: "k1", PublicKey: "pub1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	state, err := c.RemovePeer(context.Background(), "k1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if state != PeerRemoved {
		t.Errorf("remove state = %v, want PeerRemoved", state)
	}
	state, err = c.RemovePeer(context.Background(), "never-added")
	if err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if state != PeerNotPresent {
		t.Errorf("remove missing state = %v, want PeerNotPresent", state)
	}
}

func TestListPeers(t *testing.T) {
	fe := newFakeEngine()
	srv := httptest.NewServer(fe.handler())
	defer srv.Close()
	c := NewClient(srv.URL, "")

	for _, id := range []string{"a", "b"} {
		if _, err := c.AddPeer(context.Background(), Peer{ID: id, PublicKey: "pub-" + id}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	peers, err := c.ListPeers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(peers) != 2 {
		t.Errorf("listed %d peers, want 2", len(peers))
	}
}

func TestUnreachableEngine(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens here anymore

	c := NewClient(url, "")
	if c.IsReachable(context.Background()) {
		t.Error("closed server reported reachable")
	}
	state, err := c.AddPeer(context.Background(), Peer{ID: "k1"})
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("add to closed server: got %v, want ErrUnreachable", err)
	}
	if state != PeerStateUnknown {
		t.Errorf("failed add state = %v, want PeerStateUnknown", state)
	}
	state, err = c.RemovePeer(context.Background(), "k1")
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("remove on closed server: got %v, want ErrUnreachable", err)
	}
	if state != PeerStateUnknown {
		t.Errorf("failed remove state = %v, want PeerStateUnknown", state)
	}
}
