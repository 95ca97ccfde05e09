package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnreachable reports that the tunnel engine control API did not answer.
// The triggering database operation still completes; reconciliation closes
// the gap later.
var ErrUnreachable = errors.New("tunnel engine unreachable")

// PeerState is the outcome of an idempotent add/remove call. "Already
// present" and "not present" are success-with-information, not errors: the
// engine may have been mutated out-of-band or a previous push may have
// partially succeeded.
type PeerState int

const (
	// PeerStateUnknown is the zero value, returned alongside errors so a
	// failed call can never be mistaken for a successful add.
	PeerStateUnknown PeerState = iota
	PeerAdded
	PeerAlreadyPresent
	PeerRemoved
	PeerNotPresent
)

// Peer is the wire representation of one tunnel peer, keyed by key id.
type Peer struct {
	ID           string `json:"id"`
	PublicKey    string `json:"public_key"`
	PresharedKey string `json:"preshared_key,omitempty"`
	AllowedIP    string `json:"allowed_ip"`
}

// Client talks to the engine's loopback control API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

// AddPeer registers a peer with the engine.
func (c *Client) AddPeer(ctx context.Context, peer Peer) (PeerState, error) {
	resp, err := c.http.R().SetContext(ctx).SetBody(peer).Post("/peers")
	if err != nil {
		return PeerStateUnknown, fmt.Errorf("%w: add peer %s: %v", ErrUnreachable, peer.ID, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return PeerAdded, nil
	case http.StatusConflict:
		return PeerAlreadyPresent, nil
	}
	return PeerStateUnknown, fmt.Errorf("add peer %s: engine returned %d: %s", peer.ID, resp.StatusCode(), resp.String())
}

// RemovePeer drops a peer from the engine. A never-added id is not an error.
func (c *Client) RemovePeer(ctx context.Context, id string) (PeerState, error) {
	resp, err := c.http.R().SetContext(ctx).Delete("/peers/" + id)
	if err != nil {
		return PeerStateUnknown, fmt.Errorf("%w: remove peer %s: %v", ErrUnreachable, id, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return PeerRemoved, nil
	case http.StatusNotFound:
		return PeerNotPresent, nil
	}
	return PeerStateUnknown, fmt.Errorf("remove peer %s: engine returned %d: %s", id, resp.StatusCode(), resp.String())
}

// IsReachable probes the engine health endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	return err == nil && resp.StatusCode() == http.StatusOK
}

// ListPeers returns the peers the engine currently serves.
func (c *Client) ListPeers(ctx context.Context) ([]Peer, error) {
	var peers []Peer
	resp, err := c.http.R().SetContext(ctx).SetResult(&peers).Get("/peers")
	if err != nil {
		return nil, fmt.Errorf("%w: list peers: %v", ErrUnreachable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list peers: engine returned %d: %s", resp.StatusCode(), resp.String())
	}
	return peers, nil
}
