package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoBars is returned when a run is started without any bar.
	ErrNoBars = errors.New("no bars to simulate")
	// ErrRunNotFound is returned by storage when a run ID is unknown.
	ErrRunNotFound = errors.New("run not found")
	// ErrDuplicateRun is returned by storage when a run ID already exists.
	ErrDuplicateRun = errors.New("run already exists")
)

// ValidationError lists every configuration rule that failed.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid strategy params (%d problems): %s",
		len(e.Problems), strings.Join(e.Problems, "; "))
}

// BarError aborts a run on a bar that cannot be simulated.
type BarError struct {
	Index     int
	Timestamp time.Time
	Reason    string
}

func (e *BarError) Error() string {
	return fmt.Sprintf("bar %d at %s: %s", e.Index, e.Timestamp.UTC().Format(time.RFC3339), e.Reason)
}
