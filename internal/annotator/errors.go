package annotator

import "errors"

var (
	ErrNoDraft         = errors.New("no box drawn")
	ErrNoSpecies       = errors.New("no species selected")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNotReady        = errors.New("image is still loading")
	ErrNoImage         = errors.New("no image loaded")
	ErrBoxTooSmall     = errors.New("box is too small")
)
