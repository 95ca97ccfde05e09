package wireguard

import (
	"fmt"
	"sort"
	"strings"
)

// PeerSettings is the server-side part baked into every client config.
type PeerSettings struct {
	ServerPublicKey string
	Endpoint        string
	DNS             []string
	AllowedIPs      []string
}

// RenderClientConfig formats the client-importable configuration text.
// Pure: same inputs always produce byte-identical output.
func RenderClientConfig(privateKey, clientAddress string, peer PeerSettings, presharedKey string) string {
	allowed := append([]string(nil), peer.AllowedIPs...)
	sort.Strings(allowed)

	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", privateKey)
	fmt.Fprintf(&b, "Address = %s\n", clientAddress)
	fmt.Fprintf(&b, "DNS = %s\n", strings.Join(peer.DNS, ", "))
	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", peer.ServerPublicKey)
	fmt.Fprintf(&b, "Endpoint = %s\n", peer.Endpoint)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", strings.Join(allowed, ", "))
	if presharedKey != "" {
		fmt.Fprintf(&b, "PresharedKey = %s\n", presharedKey)
	}
	b.WriteString("PersistentKeepalive = 25\n")
	return b.String()
}
