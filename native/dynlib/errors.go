package dynlib

import "github.com/pieceengine/piece-host/errors"

var errClosed = errors.Unsupported(errors.PhaseLoad, "library is closed")
