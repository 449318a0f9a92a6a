package validate_test

import (
	"testing"

	"github.com/ardanlabs/nakamoto/foundation/validate"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type request struct {
	To    string `json:"to" validate:"required,base64,len=44"`
	Value uint64 `json:"value" validate:"gt=0"`
}

func Test_Check(t *testing.T) {
	t.Log("Given the need to validate request payloads.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the payload is well formed.", testID)
		{
			r := request{To: "AoDumTyPUTmwK+hK8T06PXbiZGRH9pPkfHE5rRdrq0q8", Value: 10}
			if err := validate.Check(r); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould pass validation: %s", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould pass validation.", success, testID)
		}

		testID = 1
		t.Logf("\tTest %d:\tWhen fields are missing.", testID)
		{
			err := validate.Check(request{})
			if !validate.IsFieldErrors(err) {
				t.Fatalf("\t%s\tTest %d:\tShould return field errors: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould return field errors.", success, testID)

			fields := validate.GetFieldErrors(err).Fields()
			if _, exists := fields["to"]; !exists {
				t.Fatalf("\t%s\tTest %d:\tShould name the field by its json tag: %v", failed, testID, fields)
			}
			if _, exists := fields["value"]; !exists {
				t.Fatalf("\t%s\tTest %d:\tShould report the zero value: %v", failed, testID, fields)
			}
			t.Logf("\t%s\tTest %d:\tShould name the fields by their json tags.", success, testID)
		}
	}
}
