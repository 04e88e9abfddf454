package offer

import "errors"

// Error taxonomy for offer authorization and decisions. Handlers map these
// onto HTTP statuses; nothing else should be surfaced to the public client.
var (
	// ErrBadRequest indicates malformed link parameters.
	ErrBadRequest = errors.New("offer: bad request")
	// ErrExpired indicates the link or the offer validity window has passed.
	ErrExpired = errors.New("offer: link expired")
	// ErrForbidden indicates a token or signature mismatch. The two causes
	// are deliberately not distinguished outside internal logs.
	ErrForbidden = errors.New("offer: forbidden")
	// ErrNotFound indicates an unknown offer id.
	ErrNotFound = errors.New("offer: not found")
	// ErrNoMoreOptions indicates an advance past the last option.
	ErrNoMoreOptions = errors.New("offer: no more options")
	// ErrConflict indicates an illegal transition or a lost concurrent race.
	ErrConflict = errors.New("offer: conflicting decision")
	// ErrAlreadyExists indicates an insert for an id already in the store.
	ErrAlreadyExists = errors.New("offer: already exists")
	// ErrConditionFailed indicates a conditional update matched no row.
	ErrConditionFailed = errors.New("offer: condition failed")
	// ErrStoreUnavailable indicates a transient persistence failure.
	ErrStoreUnavailable = errors.New("offer: store unavailable")
)
