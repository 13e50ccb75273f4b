package history

import "errors"

var (
	// ErrVersionNotFound indicates the requested version is not in the
	// store, either because it never existed or because it was pruned.
	ErrVersionNotFound = errors.New("layout version not found")

	// ErrNonSequential indicates an append that would leave a gap in
	// the version chain.
	ErrNonSequential = errors.New("version append out of sequence")

	// ErrCorruptPayload indicates a stored row could not be decoded.
	ErrCorruptPayload = errors.New("corrupt version payload")
)
