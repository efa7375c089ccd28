package signature

import (
	"errors"

	"github.com/kozaktomas/signet/internal/imaging"
)

// Error kinds reported by the matching pipeline. Callers match them with
// errors.Is; none of them is retried inside this package.
var (
	// ErrDecode is returned when a signature image cannot be decoded.
	ErrDecode = imaging.ErrDecode

	// ErrInsufficientSigners is returned when a batch cannot be drawn from the pool.
	ErrInsufficientSigners = errors.New("insufficient signers for batch")

	// ErrInsufficientEnrollment is returned when a room cannot be trained.
	ErrInsufficientEnrollment = errors.New("insufficient enrollment to train room")

	// ErrEmptyPool is returned when recognition has no candidate signers.
	ErrEmptyPool = errors.New("reference pool has no signers")

	// ErrNoReferenceImages is returned when the claimed signer has nothing
	// enrolled. It means "cannot verify", not "forged".
	ErrNoReferenceImages = errors.New("no reference images for signer")

	// ErrModelOutput is returned when a model returns a malformed score vector.
	ErrModelOutput = errors.New("malformed model output")
)
