package positions

import "errors"

// ErrLocked is returned by Save when the file lock cannot be acquired.
var ErrLocked = errors.New("positions: file locked by another process")
