package domain

import "errors"

// Fatal stage failures. Stages wrap these with fmt.Errorf("%w: ...") so callers
// can classify with errors.Is.
var (
	ErrUniverseLoad   = errors.New("universe load failed")
	ErrWatermarkQuery = errors.New("watermark query failed")
	ErrArtifactWrite  = errors.New("artifact write failed")
	ErrWarehouseLoad  = errors.New("warehouse load failed")

	// ErrInvalidRequest reports a comparison request the caller must fix.
	ErrInvalidRequest = errors.New("invalid request")
)
