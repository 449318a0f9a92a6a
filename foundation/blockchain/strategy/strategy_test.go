package strategy_test

import (
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/blockchain/strategy"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Retrieve(t *testing.T) {
	t.Log("Given the need to select a mining strategy by name.")
	{
		for testID, name := range strategy.Names() {
			t.Logf("\tTest %d:\tWhen asking for %q.", testID, name)
			{
				kind, err := strategy.Retrieve(name)
				if err != nil || string(kind) != name {
					t.Fatalf("\t%s\tTest %d:\tShould get the strategy back: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get the strategy back.", success, testID)
			}
		}

		if _, err := strategy.Retrieve("stubborn"); err == nil {
			t.Fatalf("\t%s\tShould reject an unknown strategy.", failed)
		}
		t.Logf("\t%s\tShould reject an unknown strategy.", success)

		if strategy.Honest.Withholds() || !strategy.Selfish.Withholds() || !strategy.DoubleSpend.Retargets() || strategy.Selfish.Retargets() {
			t.Fatalf("\t%s\tShould report the right capabilities.", failed)
		}
		t.Logf("\t%s\tShould report the right capabilities.", success)
	}
}

func Test_Selfish(t *testing.T) {
	type table struct {
		name string
		lead int64
		exp  strategy.Action
	}

	tt := []table{
		{"behind", -1, strategy.Adopt},
		{"even", 0, strategy.Adopt},
		{"one", 1, strategy.Race},
		{"two", 2, strategy.Override},
		{"three", 3, strategy.PublishOldest},
		{"ten", 10, strategy.PublishOldest},
	}

	t.Log("Given the need to react to a competing block while withholding.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen the lead is %d.", testID, tst.lead)
			{
				f := func(t *testing.T) {
					got := strategy.ReactToPeerBlock(tst.lead)
					if got != tst.exp {
						t.Fatalf("\t%s\tTest %d:\tShould %s, got %s.", failed, testID, tst.exp, got)
					}
					t.Logf("\t%s\tTest %d:\tShould %s.", success, testID, tst.exp)
				}

				t.Run(tst.name, f)
			}
		}
	}

	t.Log("Given the need to react to finding a block while withholding.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen winning a tie race.", testID)
		{
			if got := strategy.ReactToOwnBlock(0, 2); got != strategy.Override || !got.PublishesAll() {
				t.Fatalf("\t%s\tTest %d:\tShould publish the whole branch, got %s.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould publish the whole branch.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen extending a lead.", testID)
		{
			if got := strategy.ReactToOwnBlock(1, 2); got != strategy.Wait {
				t.Fatalf("\t%s\tTest %d:\tShould keep withholding, got %s.", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould keep withholding.", success, testID)
		}
	}
}

func Test_DoubleSpend(t *testing.T) {
	t.Log("Given the need to time the release of a hidden branch.")
	{
		cases := []struct {
			hidden, public uint64
			exp            bool
		}{
			{3, 4, false},
			{4, 4, false},
			{5, 4, true},
		}

		for testID, c := range cases {
			t.Logf("\tTest %d:\tWhen hidden is %d and public is %d.", testID, c.hidden, c.public)
			{
				if got := strategy.ShouldPublish(c.hidden, c.public); got != c.exp {
					t.Fatalf("\t%s\tTest %d:\tShould get %t.", failed, testID, c.exp)
				}
				t.Logf("\t%s\tTest %d:\tShould get %t.", success, testID, c.exp)
			}
		}
	}
}
