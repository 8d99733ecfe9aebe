// Package vaulttx defines the compiled batch message that is stored in a
// transaction record and later executed.
package vaulttx

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"github.com/zeebo/blake3"
)

// MaxAccountKeys bounds static plus lookup-resolved addresses, since every
// reference to them is a single byte.
const MaxAccountKeys = 256

var ErrInvalidTransactionMessage = errors.New("ErrInvalidTransactionMessage")

type CompiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

type MessageAddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// VaultTransactionMessage is a batch of instructions compiled against a
// deduplicated address list.
//
// AccountKeys is ordered: writable signers, readonly signers, writable
// non-signers, readonly non-signers. Addresses loaded through
// AddressTableLookups follow the static keys, all writable lookups first
// and then all readonly lookups, each group in table order.
type VaultTransactionMessage struct {
	NumSigners            uint8
	NumWritableSigners    uint8
	NumWritableNonSigners uint8
	AccountKeys           []solana.PublicKey
	Instructions          []CompiledInstruction
	AddressTableLookups   []MessageAddressTableLookup
}

// NumLookups returns the number of addresses loaded from all tables.
func (msg *VaultTransactionMessage) NumLookups() int {
	return lo.SumBy(msg.AddressTableLookups, func(lookup MessageAddressTableLookup) int {
		return len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	})
}

func (msg *VaultTransactionMessage) NumWritableLookups() int {
	return lo.SumBy(msg.AddressTableLookups, func(lookup MessageAddressTableLookup) int {
		return len(lookup.WritableIndexes)
	})
}

// NumAllAccountKeys returns the number of addresses the instructions may
// reference: static keys plus every lookup index.
func (msg *VaultTransactionMessage) NumAllAccountKeys() int {
	return len(msg.AccountKeys) + msg.NumLookups()
}

func (msg *VaultTransactionMessage) IsStaticWritableIndex(keyIndex int) bool {
	numAccountKeys := len(msg.AccountKeys)
	numSigners := int(msg.NumSigners)
	numWritableSigners := int(msg.NumWritableSigners)
	numWritableNonSigners := int(msg.NumWritableNonSigners)

	if keyIndex >= numAccountKeys {
		return false
	}

	if keyIndex < numWritableSigners {
		return true
	}

	if keyIndex >= numSigners {
		return keyIndex-numSigners < numWritableNonSigners
	}

	return false
}

func (msg *VaultTransactionMessage) IsSignerIndex(keyIndex int) bool {
	return keyIndex < int(msg.NumSigners)
}

// IsWritableIndex reports writability for any resolved index. Lookup
// addresses are writable iff they came from a writable index set.
func (msg *VaultTransactionMessage) IsWritableIndex(keyIndex int) bool {
	numAccountKeys := len(msg.AccountKeys)
	if keyIndex < numAccountKeys {
		return msg.IsStaticWritableIndex(keyIndex)
	}
	return keyIndex-numAccountKeys < msg.NumWritableLookups()
}

// Validate checks the message's internal consistency.
func (msg *VaultTransactionMessage) Validate() error {
	numAccountKeys := len(msg.AccountKeys)
	numSigners := int(msg.NumSigners)

	if numSigners > numAccountKeys {
		return fmt.Errorf("%w: %d signers but %d account keys", ErrInvalidTransactionMessage, numSigners, numAccountKeys)
	}

	if msg.NumWritableSigners > msg.NumSigners {
		return fmt.Errorf("%w: %d writable signers exceeds %d signers", ErrInvalidTransactionMessage, msg.NumWritableSigners, msg.NumSigners)
	}

	if int(msg.NumWritableNonSigners) > numAccountKeys-numSigners {
		return fmt.Errorf("%w: %d writable non-signers exceeds %d non-signers", ErrInvalidTransactionMessage, msg.NumWritableNonSigners, numAccountKeys-numSigners)
	}

	numAllAccountKeys := msg.NumAllAccountKeys()
	if numAllAccountKeys > MaxAccountKeys {
		return fmt.Errorf("%w: %d addresses exceeds %d", ErrInvalidTransactionMessage, numAllAccountKeys, MaxAccountKeys)
	}

	for instrIdx, instr := range msg.Instructions {
		if int(instr.ProgramIDIndex) >= numAllAccountKeys {
			return fmt.Errorf("%w: instruction %d program index %d out of range", ErrInvalidTransactionMessage, instrIdx, instr.ProgramIDIndex)
		}

		for _, acctIdx := range instr.AccountIndexes {
			if int(acctIdx) >= numAllAccountKeys {
				return fmt.Errorf("%w: instruction %d account index %d out of range", ErrInvalidTransactionMessage, instrIdx, acctIdx)
			}
		}
	}

	return nil
}

// TakeInstructions hands the instruction list to the caller and leaves an
// empty list behind. Any later read of msg.Instructions sees nothing.
func (msg *VaultTransactionMessage) TakeInstructions() []CompiledInstruction {
	instrs := msg.Instructions
	msg.Instructions = []CompiledInstruction{}
	return instrs
}

// Hash returns the blake3 digest of the message's canonical encoding.
func (msg *VaultTransactionMessage) Hash() ([32]byte, error) {
	data, err := MarshalMessage(msg)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(data), nil
}
