package store

import "errors"

// ErrNotFound signals an integrity fault: a scoring or delivery
// operation referenced a guid that does not exist in the store.
var ErrNotFound = errors.New("article not found")
