package peer_test

import (
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/peer"
)

func Test_CRUD(t *testing.T) {
	type table struct {
		name  string
		peers []peer.Peer
	}

	tt := []table{
		{
			name:  "basic",
			peers: []peer.Peer{{Host: "host3"}, {Host: "host1"}, {Host: "host2"}},
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ps := peer.NewPeerSet()

			for _, peer := range tst.peers {
				ps.Add(peer)
			}

			if ps.Add(tst.peers[0]) {
				t.Fatalf("Test %s:\tShould not add the same peer twice.", tst.name)
			}

			peers := ps.Copy("")
			if len(peers) != len(tst.peers) {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers))
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			if peers[0].Host != "host1" || peers[2].Host != "host3" {
				t.Fatalf("Test %s:\tShould get back the peers sorted by host.", tst.name)
			}

			peers = ps.Copy("host2")
			if len(peers) != len(tst.peers)-1 {
				t.Logf("Test %s:\tgot: %d", tst.name, len(peers))
				t.Logf("Test %s:\texp: %d", tst.name, len(tst.peers)-1)
				t.Fatalf("Test %s:\tShould get back the right peers.", tst.name)
			}

			ps.Remove(peer.New("host1"))
			if len(ps.Copy("")) != len(tst.peers)-1 {
				t.Fatalf("Test %s:\tShould be able to remove a peer.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Registry(t *testing.T) {
	reg := peer.NewMemoryRegistry()

	for _, host := range []string{"node1", "node2", "node1"} {
		if err := reg.Register(peer.New(host)); err != nil {
			t.Fatalf("Should be able to register %s: %s", host, err)
		}
	}

	peers, err := reg.ListPeers()
	if err != nil {
		t.Fatalf("Should be able to list peers: %s", err)
	}

	if len(peers) != 2 {
		t.Fatalf("Should get back each peer once, got %d", len(peers))
	}

	static := peer.NewStaticRegistry([]string{"a:9080", "b:9080"})
	if err := static.Register(peer.New("c:9080")); err != nil {
		t.Fatalf("Should be able to register with a static registry: %s", err)
	}

	peers, _ = static.ListPeers()
	if len(peers) != 2 {
		t.Fatalf("Should only list the configured hosts, got %d", len(peers))
	}
}
