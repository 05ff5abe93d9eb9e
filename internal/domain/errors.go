package domain

import "errors"

// ─── Error Kinds ────────────────────────────────────────────────────────────
// Every domain error unwraps to exactly one kind. Callers classify with
// errors.Is(err, ErrValidation) etc. and show Error() to the user as-is.

var (
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrExternal   = errors.New("external failure")
	ErrNotFound   = errors.New("not found")
)

// Error is a domain error carrying a one-line, human-readable message.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// ─── Sentinel Errors ────────────────────────────────────────────────────────

var (
	// Validation
	ErrMissingWallet       = newError(ErrValidation, "wallet address is required")
	ErrInvalidReferralCode = newError(ErrValidation, "invalid referral code format, must be '0:xxxxxx' where x is alphanumeric")
	ErrSelfReferral        = newError(ErrValidation, "you cannot use your own referral code")
	ErrReferrerNotFound    = newError(ErrValidation, "referral code does not belong to any player")
	ErrAlreadyBound        = newError(ErrValidation, "already have a referrer")
	ErrInvalidAmount       = newError(ErrValidation, "please enter a valid amount")
	ErrAmountTooPrecise    = newError(ErrValidation, "amount supports at most 9 decimal places")
	ErrInsufficientTries   = newError(ErrValidation, "no gacha tries left")
	ErrInvalidSuiAddress   = newError(ErrValidation, "please enter a valid SUI wallet address")
	ErrInvalidWallet       = newError(ErrValidation, "wallet address must be printable ASCII")

	// Conflict
	ErrVersionConflict = newError(ErrConflict, "player document was modified concurrently")
	ErrTransient       = newError(ErrConflict, "ledger is busy, please try again")

	// External
	ErrPaymentRejected = newError(ErrExternal, "payment was rejected or cancelled")
	ErrPaymentFailed   = newError(ErrExternal, "payment could not be submitted")
	ErrPaymentTimeout  = newError(ErrExternal, "payment timed out")

	// Not found
	ErrPlayerNotFound  = newError(ErrNotFound, "player not found")
	ErrBindingNotFound = newError(ErrNotFound, "referral binding not found")
)
