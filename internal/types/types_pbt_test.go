package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestServiceErrorMessageProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("Error returns the message verbatim", prop.ForAll(
		func(code, msg string) bool {
			e := &ServiceError{Code: code, Message: msg}
			return e.Error() == msg
		},
		gen.AlphaString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
