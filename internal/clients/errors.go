package clients

import (
	"errors"
)

var ErrStashNotFound = errors.New("stash not found")
var ErrAPIRequest = errors.New("monitoring api request failed")
var ErrSocketRejected = errors.New("client socket rejected result")
