package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrStageInvariant is wrapped by every StageError.
	ErrStageInvariant = errors.New("stage invariant violation")

	// ErrCapabilityAbsent reports that the host cannot deliver timing entries.
	// Latency then always comes from the internal measurement.
	ErrCapabilityAbsent = errors.New("timing entries not supported by host")
)

// StageError reports a boundary reached from an illegal prior stage.
type StageError struct {
	Interaction   InteractionKind
	InteractionID string
	Boundary      StageKind
	Expected      StageKind
	Got           StageKind
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s capture %s: reached %s boundary from %s, want %s",
		e.Interaction, e.InteractionID, e.Boundary, e.Got, e.Expected)
}

func (e *StageError) Unwrap() error {
	return ErrStageInvariant
}
