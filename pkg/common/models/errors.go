package models

import "errors"

// ErrNotFound is returned by repositories when a lookup has no result.
var ErrNotFound = errors.New("not found")
