// Package executor validates a stored message against the accounts a
// caller supplies and runs its instructions.
package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/sealevel"
	"go.firedancer.io/executor/pkg/vaulttx"
	"k8s.io/klog/v2"
)

// AccountInfo is an account as supplied by the caller of an execution.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
	Owner      solana.PublicKey
	Data       []byte
}

// InvokeRequest is a single downstream program invocation.
type InvokeRequest = sealevel.Instruction

// Invoker performs one downstream invocation to completion.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) error
}

// ExecutableMessage is a message whose addresses have been checked against
// the caller's accounts. It can only be built by NewValidated.
type ExecutableMessage struct {
	message      *vaulttx.VaultTransactionMessage
	accountMetas []sealevel.AccountMeta
}

// NewValidated resolves every address of message and checks it against
// messageAccounts. lookupTableAccounts holds one table account per address
// table lookup, in the same order.
//
// Signer and writable flags of static addresses come from the message.
// Addresses loaded from tables are never signers, and are writable only
// when loaded through a writable index.
func NewValidated(message *vaulttx.VaultTransactionMessage, messageAccounts []AccountInfo, lookupTableAccounts []AccountInfo) (*ExecutableMessage, error) {
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ExecutorErrInvalidTransactionMessage, err)
	}

	if len(lookupTableAccounts) != len(message.AddressTableLookups) {
		return nil, fmt.Errorf("%w: got %d lookup table accounts, message has %d lookups",
			ExecutorErrInvalidNumberOfAccounts, len(lookupTableAccounts), len(message.AddressTableLookups))
	}

	tables := make([]*alt.AddressLookupTableAccount, 0, len(lookupTableAccounts))
	for i, info := range lookupTableAccounts {
		lookup := message.AddressTableLookups[i]
		if info.Key != lookup.AccountKey {
			return nil, fmt.Errorf("%w: lookup table %d is %s, expected %s", ExecutorErrInvalidAccount, i, info.Key, lookup.AccountKey)
		}

		table, err := alt.TableAccountFromState(info.Key, info.Owner, info.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: lookup table %s: %s", ExecutorErrInvalidAccount, info.Key, err)
		}
		tables = append(tables, table)
	}

	numStatic := len(message.AccountKeys)
	if len(messageAccounts) != message.NumAllAccountKeys() {
		return nil, fmt.Errorf("%w: got %d message accounts, message resolves %d",
			ExecutorErrInvalidNumberOfAccounts, len(messageAccounts), message.NumAllAccountKeys())
	}

	for i, key := range message.AccountKeys {
		if messageAccounts[i].Key != key {
			return nil, fmt.Errorf("%w: static account %d is %s, expected %s", ExecutorErrInvalidAccount, i, messageAccounts[i].Key, key)
		}
	}

	// writable lookups of all tables come first, then readonly ones
	writableCursor := numStatic
	readonlyCursor := numStatic + message.NumWritableLookups()

	for i, lookup := range message.AddressTableLookups {
		table := tables[i]

		for _, idx := range lookup.WritableIndexes {
			if err := checkLookupAddress(table, idx, messageAccounts[writableCursor]); err != nil {
				return nil, err
			}
			writableCursor++
		}

		for _, idx := range lookup.ReadonlyIndexes {
			if err := checkLookupAddress(table, idx, messageAccounts[readonlyCursor]); err != nil {
				return nil, err
			}
			readonlyCursor++
		}
	}

	accountMetas := make([]sealevel.AccountMeta, 0, len(messageAccounts))
	for i, info := range messageAccounts {
		accountMetas = append(accountMetas, sealevel.AccountMeta{
			Pubkey:     info.Key,
			IsSigner:   i < numStatic && message.IsSignerIndex(i),
			IsWritable: message.IsWritableIndex(i),
		})
	}

	return &ExecutableMessage{message: message, accountMetas: accountMetas}, nil
}

func checkLookupAddress(table *alt.AddressLookupTableAccount, idx uint8, info AccountInfo) error {
	addr, err := table.Lookup(idx)
	if err != nil {
		return fmt.Errorf("%w: lookup table %s with %d addresses, index %d: %w",
			ExecutorErrInvalidAccount, table.Key, len(table.Addresses), idx, err)
	}
	if addr != info.Key {
		return fmt.Errorf("%w: lookup table %s index %d is %s, got %s",
			ExecutorErrInvalidAccount, table.Key, idx, addr, info.Key)
	}
	return nil
}

// AccountMetas returns the resolved address list with the privileges the
// message grants each address.
func (em *ExecutableMessage) AccountMetas() []sealevel.AccountMeta {
	return append([]sealevel.AccountMeta(nil), em.accountMetas...)
}

// Message returns the underlying message. After ExecuteMessage its
// instruction list is empty.
func (em *ExecutableMessage) Message() *vaulttx.VaultTransactionMessage {
	return em.message
}

type executeOptions struct {
	drainHook func(drained *vaulttx.VaultTransactionMessage) error
}

type ExecuteOption func(opts *executeOptions)

// WithDrainHook runs fn after the instructions have been taken from the
// message and before the first invocation. An error from fn aborts the
// execution with no invocation performed.
func WithDrainHook(fn func(drained *vaulttx.VaultTransactionMessage) error) ExecuteOption {
	return func(opts *executeOptions) {
		opts.drainHook = fn
	}
}

// ExecuteMessage takes the instructions out of the message and invokes them
// in order. The first failing invocation stops the run. Effects of earlier
// invocations are left in place.
func (em *ExecutableMessage) ExecuteMessage(ctx context.Context, invoker Invoker, opts ...ExecuteOption) error {
	var options executeOptions
	for _, opt := range opts {
		opt(&options)
	}

	instructions := em.message.TakeInstructions()

	if options.drainHook != nil {
		if err := options.drainHook(em.message); err != nil {
			return fmt.Errorf("drain hook: %w", err)
		}
	}

	for i, instr := range instructions {
		req, err := em.invokeRequest(instr)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}

		klog.V(2).Infof("invoking instruction %d: program %s with %d accounts", i, req.ProgramId, len(req.Accounts))

		if err = invoker.Invoke(ctx, req); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	return nil
}

func (em *ExecutableMessage) invokeRequest(instr vaulttx.CompiledInstruction) (InvokeRequest, error) {
	if int(instr.ProgramIDIndex) >= len(em.accountMetas) {
		return InvokeRequest{}, fmt.Errorf("%w: program index %d", ErrIndexOutOfBounds, instr.ProgramIDIndex)
	}

	accts := make([]sealevel.AccountMeta, 0, len(instr.AccountIndexes))
	for _, idx := range instr.AccountIndexes {
		if int(idx) >= len(em.accountMetas) {
			return InvokeRequest{}, fmt.Errorf("%w: account index %d", ErrIndexOutOfBounds, idx)
		}
		accts = append(accts, em.accountMetas[idx])
	}

	return InvokeRequest{
		ProgramId: em.accountMetas[instr.ProgramIDIndex].Pubkey,
		Accounts:  accts,
		Data:      instr.Data,
	}, nil
}
