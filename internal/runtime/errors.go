package runtime

import "errors"

// ErrDatasetCapacity reports that every open dataset slot is in use.
var ErrDatasetCapacity = errors.New("runtime: open dataset limit reached")
