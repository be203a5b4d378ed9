package server

import "net"

// BlackList is a settable hook the accept loop consults before handing a
// socket to a Handler. Its intended population source (config file,
// runtime RPC, observed peer behavior) is left unspecified; nothing
// populates it by default.
type BlackList struct {
	addrs map[string]struct{}
}

// NewBlackList returns an empty blacklist.
func NewBlackList() *BlackList {
	return &BlackList{addrs: make(map[string]struct{})}
}

// Add blacklists addr.
func (b *BlackList) Add(addr net.Addr) {
	b.addrs[addr.String()] = struct{}{}
}

// Contains reports whether addr is blacklisted.
func (b *BlackList) Contains(addr net.Addr) bool {
	_, ok := b.addrs[addr.String()]
	return ok
}
