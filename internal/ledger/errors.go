package ledger

import "errors"

// ErrNotFound indicates an operation referenced an attachment with no
// ledger entry.
var ErrNotFound = errors.New("ledger entry not found")
