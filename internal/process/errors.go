package process

import "errors"

// ErrInvalidPID is returned for pids that cannot name a process group.
// Zero would target the caller's own group.
var ErrInvalidPID = errors.New("invalid pid")
