package world

import "errors"

// ErrUnknownKind is returned when an agent of an unrecognised kind would
// be created. It aborts the step that produced it.
var ErrUnknownKind = errors.New("world: unknown agent kind")
