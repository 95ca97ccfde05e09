package wireguard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

// ErrPoolExhausted means every host address of the subnet is taken. This is
// a recoverable caller-visible condition, not a crash.
var ErrPoolExhausted = errors.New("no free addresses left in the pool")

// AllocateAddress picks the first free host address of the subnet, walking
// hosts in ascending order and skipping the network and broadcast
// addresses. The result carries a /32 (or /128) suffix ready for a client
// config. The allocator is stateless: occupancy must come from the store
// and the caller is responsible for reading it and inserting the new key
// under one transaction.
func AllocateAddress(cidr string, occupied []string) (string, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return "", fmt.Errorf("parse subnet %q: %w", cidr, err)
	}
	prefix = prefix.Masked()

	taken := make(map[netip.Addr]struct{}, len(occupied))
	for _, o := range occupied {
		if o == "" {
			continue
		}
		if p, err := netip.ParsePrefix(o); err == nil {
			taken[p.Addr()] = struct{}{}
		} else if a, err := netip.ParseAddr(o); err == nil {
			taken[a] = struct{}{}
		}
	}

	network := prefix.Addr()
	suffix := 32
	var broadcast netip.Addr
	if network.Is4() {
		if prefix.Bits() < 31 {
			broadcast = broadcastAddr(prefix)
		}
	} else {
		suffix = 128
	}

	start := network.Next()
	if (network.Is4() && prefix.Bits() >= 31) || (!network.Is4() && prefix.Bits() >= 127) {
		// Point-to-point prefixes have no network/broadcast to reserve.
		start = network
	}

	for a := start; prefix.Contains(a); a = a.Next() {
		if a == broadcast {
			continue
		}
		if _, ok := taken[a]; ok {
			continue
		}
		return fmt.Sprintf("%s/%d", a, suffix), nil
	}
	return "", ErrPoolExhausted
}

func broadcastAddr(p netip.Prefix) netip.Addr {
	raw := p.Addr().As4()
	v := binary.BigEndian.Uint32(raw[:])
	v |= (1 << (32 - p.Bits())) - 1
	binary.BigEndian.PutUint32(raw[:], v)
	return netip.AddrFrom4(raw)
}
