package sealevel

import "errors"

// instruction errors
var (
	InstrErrInvalidInstructionData   = errors.New("InstrErrInvalidInstructionData")
	InstrErrNotEnoughAccountKeys     = errors.New("InstrErrNotEnoughAccountKeys")
	InstrErrMissingAccount           = errors.New("InstrErrMissingAccount")
	InstrErrInvalidAccountData       = errors.New("InstrErrInvalidAccountData")
	InstrErrMissingRequiredSignature = errors.New("InstrErrMissingRequiredSignature")
	InstrErrInvalidArgument          = errors.New("InstrErrInvalidArgument")
	InstrErrReadonlyLamportChange    = errors.New("InstrErrReadonlyLamportChange")
	InstrErrPrivilegeEscalation      = errors.New("InstrErrPrivilegeEscalation")
	InstrErrUnsupportedProgramId     = errors.New("InstrErrUnsupportedProgramId")
	InstrErrArithmeticOverflow       = errors.New("InstrErrArithmeticOverflow")
	InstrErrInsufficientFunds        = errors.New("InstrErrInsufficientFunds")
	InstrErrComputeBudgetExceeded    = errors.New("InstrErrComputationalBudgetExceeded")
)

// system program errors
var (
	SystemProgErrResultWithNegativeLamports = errors.New("SystemProgErrResultWithNegativeLamports")
)

// instruction errors - Solana numerical error codes
const (
	InstrErrCodeSuccess                     = 0
	InstrErrCodeInvalidArgument             = 2
	InstrErrCodeInvalidInstructionData      = 3
	InstrErrCodeInvalidAccountData          = 4
	InstrErrCodeInsufficientFunds           = 6
	InstrErrCodeMissingRequiredSignature    = 8
	InstrErrCodeReadonlyLamportChange       = 12
	InstrErrCodePrivilegeEscalation         = 19
	InstrErrCodeNotEnoughAccountKeys        = 20
	InstrErrCodeUnsupportedProgramId        = 26
	InstrErrCodeMissingAccount              = 33
	InstrErrCodeComputationalBudgetExceeded = 38
	InstrErrCodeArithmeticOverflow          = 40
)

func TranslateErrToInstrErrCode(err error) int {
	var errorCode int
	switch {
	case err == nil:
		errorCode = InstrErrCodeSuccess
	case errors.Is(err, InstrErrInvalidArgument):
		errorCode = InstrErrCodeInvalidArgument
	case errors.Is(err, InstrErrInvalidInstructionData):
		errorCode = InstrErrCodeInvalidInstructionData
	case errors.Is(err, InstrErrInvalidAccountData):
		errorCode = InstrErrCodeInvalidAccountData
	case errors.Is(err, InstrErrInsufficientFunds):
		errorCode = InstrErrCodeInsufficientFunds
	case errors.Is(err, InstrErrMissingRequiredSignature):
		errorCode = InstrErrCodeMissingRequiredSignature
	case errors.Is(err, InstrErrReadonlyLamportChange):
		errorCode = InstrErrCodeReadonlyLamportChange
	case errors.Is(err, InstrErrPrivilegeEscalation):
		errorCode = InstrErrCodePrivilegeEscalation
	case errors.Is(err, InstrErrNotEnoughAccountKeys):
		errorCode = InstrErrCodeNotEnoughAccountKeys
	case errors.Is(err, InstrErrUnsupportedProgramId):
		errorCode = InstrErrCodeUnsupportedProgramId
	case errors.Is(err, InstrErrMissingAccount):
		errorCode = InstrErrCodeMissingAccount
	case errors.Is(err, InstrErrComputeBudgetExceeded):
		errorCode = InstrErrCodeComputationalBudgetExceeded
	case errors.Is(err, InstrErrArithmeticOverflow):
		errorCode = InstrErrCodeArithmeticOverflow
	}
	return errorCode
}
