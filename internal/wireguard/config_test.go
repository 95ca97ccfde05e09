package wireguard

import (
	"strings"
	"testing"
)

func TestRenderClientConfig(t *testing.T) {
	peer := PeerSettings{
		ServerPublicKey: "SRV",
		Endpoint:        "vpn.example.com:51820",
		DNS:             []string{"1.1.1.1"},
		AllowedIPs:      []string{"0.0.0.0/0"},
	}
	want := "[Interface]\n" +
		"PrivateKey = PK1\n" +
		"Address = 10.8.0.5/32\n" +
		"DNS = 1.1.1.1\n" +
		"\n" +
		"[Peer]\n" +
		"PublicKey = SRV\n" +
		"Endpoint = vpn.example.com:51820\n" +
		"AllowedIPs = 0.0.0.0/0\n" +
		"PersistentKeepalive = 25\n"

	got := RenderClientConfig("PK1", "10.8.0.5/32", peer, "")
	if got != want {
		t.Errorf("rendered config mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
	if again := RenderClientConfig("PK1", "10.8.0.5/32", peer, ""); again != got {
		t.Error("render is not deterministic")
	}
}

func TestRenderClientConfigWithPresharedKey(t *testing.T) {
	peer := PeerSettings{
		ServerPublicKey: "SRV",
		Endpoint:        "vpn.example.com:51820",
		DNS:             []string{"1.1.1.1", "8.8.8.8"},
		AllowedIPs:      []string{"10.0.0.0/8", "0.0.0.0/0"},
	}
	got := RenderClientConfig("PK1", "10.8.0.5/32", peer, "PSK1")
	if n := strings.Count(got, "PresharedKey = PSK1\n"); n != 1 {
		t.Errorf("PresharedKey line appears %d times, want 1", n)
	}
	if !strings.Contains(got, "AllowedIPs = 0.0.0.0/0, 10.0.0.0/8\n") {
		t.Errorf("allowed IPs not sorted: %s", got)
	}
	if !strings.Contains(got, "DNS = 1.1.1.1, 8.8.8.8\n") {
		t.Errorf("DNS list not joined in order: %s", got)
	}
	// PSK sits between AllowedIPs and the keepalive, matching wg-quick layout.
	if strings.Index(got, "PresharedKey") < strings.Index(got, "AllowedIPs") ||
		strings.Index(got, "PresharedKey") > strings.Index(got, "PersistentKeepalive") {
		t.Errorf("PresharedKey line out of place:\n%s", got)
	}
}

func TestDerivePublicKey(t *testing.T) {
	// 32 zero bytes is a syntactically valid scalar.
	private := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	pub, err := DerivePublicKey(private)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if len(pub) != 44 || !strings.HasSuffix(pub, "=") {
		t.Errorf("public key %q is not 32 base64 bytes", pub)
	}
	again, err := DerivePublicKey(private)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if again != pub {
		t.Error("derivation is not deterministic")
	}
}

func TestDerivePublicKeyRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "not base64!!", "AAAA"} {
		if _, err := DerivePublicKey(in); err == nil {
			t.Errorf("DerivePublicKey(%q) succeeded, want error", in)
		}
	}
}
