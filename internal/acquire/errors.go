package acquire

import (
	"errors"
	"fmt"
)

var (
	// ErrGetImage is returned when acquisition gives up: attempts exhausted,
	// pinned source failed, or staging failed.
	ErrGetImage = errors.New("get image failed")
	// ErrService marks a failure inside one source attempt (lookup,
	// enumeration, resolution, transfer). It drives the outer retry.
	ErrService = errors.New("service error")
	// ErrStaging marks a failure while moving the image into place.
	ErrStaging = errors.New("staging failed")
	// ErrDownload is the terminal error of the transfer retry loop.
	ErrDownload = errors.New("download attempts exhausted")

	errPersist = errors.New("persist image record")
)

func serviceError(source, step string, err error) error {
	return fmt.Errorf("%w: %s: %s: %w", ErrService, source, step, err)
}
