package image

import (
	"errors"
	"fmt"
)

// ErrInvalidImage matches every InvalidImageError.
var ErrInvalidImage = errors.New("invalid image")

// InvalidImageError indicates an image that failed verification and must not
// be trusted, run or moved.
type InvalidImageError struct {
	// Partition names the partition holding the image (may be empty)
	Partition string

	// Reason describes which check failed
	Reason string

	// Err is an underlying flash error, if reading the image failed
	Err error
}

func (e *InvalidImageError) Error() string {
	where := ""
	if e.Partition != "" {
		where = " in " + e.Partition
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid image%s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid image%s: %s", where, e.Reason)
}

func (e *InvalidImageError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInvalidImage) true for any InvalidImageError.
func (e *InvalidImageError) Is(target error) bool {
	return target == ErrInvalidImage
}
