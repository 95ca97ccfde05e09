package wireguard

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/crypto/curve25519"
)

// ErrKeygenUnavailable reports that the external wg tool could not be
// invoked (binary missing or non-zero exit).
var ErrKeygenUnavailable = errors.New("wireguard key generation unavailable")

const defaultKeygenTimeout = 10 * time.Second

// Keypair is the one-shot key material for a new peer. The private half is
// handed to the caller exactly once and never persisted.
type Keypair struct {
	PrivateKey string
	PublicKey  string
}

// Issuer produces peer key material via the wireguard-tools binary.
type Issuer struct {
	// Timeout bounds each wg invocation; zero means the default.
	Timeout time.Duration
}

func (i *Issuer) runWg(ctx context.Context, args ...string) (string, error) {
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = defaultKeygenTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "wg", args...).Output()
	if err != nil {
		return "", fmt.Errorf("%w: wg %s: %v", ErrKeygenUnavailable, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// GenerateKeypair creates a private key with `wg genkey` and derives the
// matching public key in-process.
func (i *Issuer) GenerateKeypair(ctx context.Context) (*Keypair, error) {
	private, err := i.runWg(ctx, "genkey")
	if err != nil {
		return nil, err
	}
	public, err := DerivePublicKey(private)
	if err != nil {
		return nil, err
	}
	return &Keypair{PrivateKey: private, PublicKey: public}, nil
}

// GeneratePresharedKey runs `wg genpsk`.
func (i *Issuer) GeneratePresharedKey(ctx context.Context) (string, error) {
	return i.runWg(ctx, "genpsk")
}

// DerivePublicKey computes the curve25519 public key for a base64-encoded
// WireGuard private key.
func DerivePublicKey(privateKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil || len(raw) != curve25519.ScalarSize {
		return "", fmt.Errorf("malformed private key")
	}
	pub, err := curve25519.X25519(raw, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(pub), nil
}
