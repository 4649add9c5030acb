package personalize

import "errors"

// ErrUnknownTier is returned for a tier outside basic, smart and advanced.
var ErrUnknownTier = errors.New("personalize: unknown tier")

var errEmptyGeneration = errors.New("personalize: provider returned blank text")
