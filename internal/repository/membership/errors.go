package membership

import "errors"

var ErrNotFound = errors.New("membership not found")
