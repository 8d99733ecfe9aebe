package executor

import "errors"

var (
	ExecutorErrInvalidNumberOfAccounts   = errors.New("InvalidNumberOfAccounts")
	ExecutorErrInvalidAccount            = errors.New("InvalidAccount")
	ExecutorErrInvalidTransactionMessage = errors.New("InvalidTransactionMessage")
)

// ErrIndexOutOfBounds is returned when a validated message references an
// address that was not resolved. Validation rules this out, so seeing it
// means the validator and message disagree.
var ErrIndexOutOfBounds = errors.New("ErrIndexOutOfBounds")

// program error codes, in declaration order after the 6000 offset
const (
	ExecutorErrCodeInvalidNumberOfAccounts   = 6000
	ExecutorErrCodeInvalidAccount            = 6001
	ExecutorErrCodeInvalidTransactionMessage = 6002
)

// ErrorCode returns the program error code carried by err, if any.
func ErrorCode(err error) (uint32, bool) {
	switch {
	case errors.Is(err, ExecutorErrInvalidNumberOfAccounts):
		return ExecutorErrCodeInvalidNumberOfAccounts, true
	case errors.Is(err, ExecutorErrInvalidAccount):
		return ExecutorErrCodeInvalidAccount, true
	case errors.Is(err, ExecutorErrInvalidTransactionMessage):
		return ExecutorErrCodeInvalidTransactionMessage, true
	}
	return 0, false
}
