package compiler

import "errors"

var (
	ErrAccountIndexOverflow            = errors.New("ErrAccountIndexOverflow")
	ErrAddressTableLookupIndexOverflow = errors.New("ErrAddressTableLookupIndexOverflow")
	ErrUnknownInstructionKey           = errors.New("ErrUnknownInstructionKey")
)
