package cachemdw

import "errors"

var (
	ErrEmptyBody = errors.New("body is empty and will not be cached")
)
