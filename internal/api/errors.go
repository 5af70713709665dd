package api

import (
	"errors"
	"fmt"
)

// Stage names the step of a pull that failed.
type Stage string

const (
	StageRequest Stage = "request" // transport error or cancellation
	StageStatus  Stage = "status"  // non-2xx response
	StageDecode  Stage = "decode"  // body is not a listing
)

// RefreshFetchError is returned by ListFiles for every failure. The local
// listing must be left untouched when it is seen.
type RefreshFetchError struct {
	Stage      Stage
	StatusCode int // set for StageStatus
	Err        error
}

func (e *RefreshFetchError) Error() string {
	return fmt.Sprintf("refresh failed (%s): %v", e.Stage, e.Err)
}

func (e *RefreshFetchError) Unwrap() error {
	return e.Err
}

// IsRefreshFetchError checks if an error is (or wraps) a RefreshFetchError.
//
// Usage:
//
//	files, err := client.ListFiles(ctx)
//	if api.IsRefreshFetchError(err) {
//	    // keep the current listing
//	}
func IsRefreshFetchError(err error) bool {
	var rfe *RefreshFetchError
	return errors.As(err, &rfe)
}
