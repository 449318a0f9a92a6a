package events_test

import (
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan out node events.")
	{
		evts := events.New()

		id1, ch1 := evts.Acquire("")
		id2, ch2 := evts.Acquire("watcher")

		testID := 0
		t.Logf("\tTest %d:\tWhen two subscribers are registered.", testID)
		{
			if id1 == "" || id2 != "watcher" || evts.Count() != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould register both: %q %q %d", failed, testID, id1, id2, evts.Count())
			}
			t.Logf("\t%s\tTest %d:\tShould register both.", success, testID)

			evts.Send("viewer: block: {}")
			if <-ch1 != "viewer: block: {}" || <-ch2 != "viewer: block: {}" {
				t.Fatalf("\t%s\tTest %d:\tShould deliver to both.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould deliver to both.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen a subscriber does not read.", testID)
		{
			for range 200 {
				evts.Send("flood")
			}
			t.Logf("\t%s\tTest %d:\tShould not block the sender.", success, testID)
		}

		testID = 2
		t.Logf("\tTest %d:\tWhen releasing subscribers.", testID)
		{
			if err := evts.Release(id1); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould release the subscriber: %s", failed, testID, err)
			}
			if err := evts.Release(id1); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould fail to release twice.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould release the subscriber once.", success, testID)

			evts.Shutdown()
			for range ch2 {
			}
			if evts.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould close every channel on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould close every channel on shutdown.", success, testID)
		}
	}
}
