// Package peer maintains the peer related information such as the set
// of know peers, their status and the registry nodes announce themselves to.
package peer

import (
	"sort"
	"sync"
)

// Peer represents information about a Node in the network.
type Peer struct {
	Host string `json:"host"`
}

// New contructs a new info value.
func New(host string) Peer {
	return Peer{
		Host: host,
	}
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	Host       string `json:"host"`
	Mode       string `json:"mode"`
	TipHash    string `json:"tip_hash"`
	TipHeight  uint64 `json:"tip_height"`
	Tips       int    `json:"tips"`
	Mempool    int    `json:"mempool"`
	KnownPeers []Peer `json:"known_peers"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known peers.
type PeerSet struct {
	mu  sync.RWMutex
	set map[Peer]struct{}
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]struct{}),
	}
}

// Add adds a new node to the set.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = struct{}{}
		return true
	}

	return false
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Copy returns a list of the known peers, leaving out the specified host,
// sorted by host.
func (ps *PeerSet) Copy(host string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for peer := range ps.set {
		if !peer.Match(host) {
			peers = append(peers, peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool { return peers[i].Host < peers[j].Host })

	return peers
}

// =============================================================================

// Registry is the address service every node registers with on startup and
// asks for the current list of peers.
type Registry interface {
	Register(peer Peer) error
	ListPeers() ([]Peer, error)
}

// MemoryRegistry is a Registry shared in process by every node of a
// simulation or a test.
type MemoryRegistry struct {
	peers *PeerSet
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		peers: NewPeerSet(),
	}
}

// Register records the peer.
func (mr *MemoryRegistry) Register(peer Peer) error {
	mr.peers.Add(peer)
	return nil
}

// ListPeers returns every registered peer.
func (mr *MemoryRegistry) ListPeers() ([]Peer, error) {
	return mr.peers.Copy(""), nil
}

// StaticRegistry is a Registry backed by a fixed list of hosts, the way a
// node started from configuration learns about the others.
type StaticRegistry struct {
	peers []Peer
}

// NewStaticRegistry constructs a registry over the specified hosts.
func NewStaticRegistry(hosts []string) *StaticRegistry {
	peers := make([]Peer, 0, len(hosts))
	for _, host := range hosts {
		peers = append(peers, New(host))
	}

	return &StaticRegistry{peers: peers}
}

// Register does nothing since the list is fixed.
func (sr *StaticRegistry) Register(peer Peer) error {
	return nil
}

// ListPeers returns the configured hosts.
func (sr *StaticRegistry) ListPeers() ([]Peer, error) {
	return append([]Peer(nil), sr.peers...), nil
}
