package execution

import "errors"

// Domain errors for the execution package.
var (
	// ErrAuthentication is returned when the caller fails the Authorizer check.
	ErrAuthentication = errors.New("execution: authentication failed")

	// ErrNoRunner reports a script type with no registered Runner.
	ErrNoRunner = errors.New("execution: no runner for script type")

	// ErrTimeout reports a run that exceeded the engine timeout.
	ErrTimeout = errors.New("execution: timed out")
)
