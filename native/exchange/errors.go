package exchange

import "errors"

var (
	// ErrUnauthorized is returned when a non-administrator invokes a restricted operation.
	ErrUnauthorized = errors.New("exchange: unauthorized")
	// ErrTimeoutNotReached is returned when the target token is withdrawn before the deadline.
	ErrTimeoutNotReached = errors.New("exchange: withdraw timeout not reached")
	// ErrDeadlineNotIncreasing is returned when a new deadline does not extend the current one.
	ErrDeadlineNotIncreasing = errors.New("exchange: deadline not increasing")
	// ErrMalformedPermit is returned when a permit payload has the wrong length or type tag.
	ErrMalformedPermit = errors.New("exchange: malformed permit payload")
	// ErrPermitSignerMismatch is returned when the permit signer differs from the caller.
	ErrPermitSignerMismatch = errors.New("exchange: permit signer mismatch")
	// ErrPermitSpenderMismatch is returned when the permit spender is not the engine.
	ErrPermitSpenderMismatch = errors.New("exchange: permit spender mismatch")
	// ErrPermitAmountMismatch is returned when the permit amount differs from the exchanged amount.
	ErrPermitAmountMismatch = errors.New("exchange: permit amount mismatch")
	// ErrInsufficientReserve is returned when custody cannot cover the computed target amount.
	ErrInsufficientReserve = errors.New("exchange: insufficient target reserve")
	// ErrSameAsset is returned when source and target identify the same token.
	ErrSameAsset = errors.New("exchange: source and target must differ")
	// ErrUnknownAsset is returned when a token identifier is empty.
	ErrUnknownAsset = errors.New("exchange: token identifier required")
	// ErrInvalidRatio is returned for nil or negative ratios.
	ErrInvalidRatio = errors.New("exchange: invalid ratio")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("exchange: invalid amount")
	// ErrZeroOutput is returned, when the policy is enabled, for exchanges whose
	// target amount rounds down to zero.
	ErrZeroOutput = errors.New("exchange: target amount rounds to zero")
	// ErrNoAdministrator is returned when the configuration lacks an administrator.
	ErrNoAdministrator = errors.New("exchange: administrator required")

	errNilState   = errors.New("exchange: state not configured")
	errNilGateway = errors.New("exchange: asset gateway not configured")
)
