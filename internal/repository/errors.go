package repository

import "errors"

// ErrStaleState indicates a conditional update matched fewer rows than expected because another
// request changed them first. The surrounding transaction is rolled back.
var ErrStaleState = errors.New("records changed concurrently")
