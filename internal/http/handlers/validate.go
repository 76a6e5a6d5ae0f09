package handlers

import (
	"github.com/go-playground/validator/v10"

	"github.com/emonty/burrow/internal/queue"
)

// validate is a single shared validator.Validate instance, safe for
// concurrent use per its own documentation, used to check the account/
// queue/message path segments pulled off the URL before they ever reach an
// engine.
var validate = validator.New()

type pathSegment struct {
	Value string `validate:"required,max=255,excludesall=/?#"`
}

// validateSegment rejects an empty, overlong, or path-hostile account/
// queue/message name pulled from the URL, mirroring the original
// implementation's account/queue/message name checks in its URL routing
// regular expressions.
func validateSegment(name string) error {
	if err := validate.Struct(pathSegment{Value: name}); err != nil {
		return queue.NewInvalidArguments("invalid name %q", name)
	}
	return nil
}

// validateSegments checks every name in one call, returning the first
// failure.
func validateSegments(names ...string) error {
	for _, name := range names {
		if err := validateSegment(name); err != nil {
			return err
		}
	}
	return nil
}
