package message_test

import (
	"errors"
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/database"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/merkle"
	"github.com/ardanlabs/nakamoto/foundation/blockchain/message"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Frames(t *testing.T) {
	t.Log("Given the need to frame messages with a one character tag.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen encoding a header announcement.", testID)
		{
			in := message.Header{
				Hash:   "00ab",
				Header: database.BlockHeader{PrevBlockHash: "0", Nonce: 7, TimeStamp: 11},
			}

			data, err := message.Encode(message.TagHeader, in)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to encode: %s", failed, testID, err)
			}
			if data[0] != 'h' || data[1] != '{' {
				t.Fatalf("\t%s\tTest %d:\tShould start with the tag then JSON: %q", failed, testID, data[:2])
			}
			t.Logf("\t%s\tTest %d:\tShould start with the tag then JSON.", success, testID)

			frame, err := message.Decode(data)
			if err != nil || frame.Tag != message.TagHeader {
				t.Fatalf("\t%s\tTest %d:\tShould decode the tag: %v", failed, testID, err)
			}

			var out message.Header
			if err := frame.Unmarshal(&out); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould decode the body: %s", failed, testID, err)
			}
			if out != in {
				t.Fatalf("\t%s\tTest %d:\tShould get the same header back: %+v", failed, testID, out)
			}
			t.Logf("\t%s\tTest %d:\tShould get the same header back.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen handling bad frames.", testID)
		{
			if _, err := message.Decode(nil); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an empty frame.", failed, testID)
			}
			if _, err := message.Decode([]byte(`z{}`)); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an unknown tag.", failed, testID)
			}
			if _, err := message.Encode(message.Tag('z'), struct{}{}); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould refuse to encode an unknown tag.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject unknown and empty frames.", success, testID)

			for _, tag := range []message.Tag{message.TagProofRequest, message.TagHeaders, message.TagNonce, message.TagBalance} {
				if !tag.IsRequest() {
					t.Fatalf("\t%s\tTest %d:\tShould treat %s as a request.", failed, testID, tag)
				}
			}
			for _, tag := range []message.Tag{message.TagTx, message.TagBlock, message.TagHeader, message.TagPeers} {
				if tag.IsRequest() {
					t.Fatalf("\t%s\tTest %d:\tShould treat %s as a broadcast.", failed, testID, tag)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould tell requests from broadcasts.", success, testID)
		}
	}
}

func Test_ProofReply(t *testing.T) {
	t.Log("Given the need to answer proof requests.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the transaction is not known.", testID)
		{
			if _, err := message.DecodeProofReply(message.NilReply()); !errors.Is(err, message.ErrNoProof) {
				t.Fatalf("\t%s\tTest %d:\tShould decode the nil reply as no proof: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould decode the nil reply as no proof.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen the transaction is known.", testID)
		{
			in := message.ProofReply{
				Path: []merkle.ProofStep{{Hash: "aa", Left: true}, {Hash: "bb"}},
				Hash: "00cd",
			}

			data, err := message.EncodeReply(in)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to encode: %s", failed, testID, err)
			}

			out, err := message.DecodeProofReply(data)
			if err != nil || out.Hash != in.Hash || len(out.Path) != 2 || !out.Path[0].Left {
				t.Fatalf("\t%s\tTest %d:\tShould get the same proof back: %+v %v", failed, testID, out, err)
			}
			t.Logf("\t%s\tTest %d:\tShould get the same proof back.", success, testID)
		}
	}
}
