// Package program implements the executor program's two entry points:
// storing a compiled message in a transaction record, and executing it.
package program

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	sha256 "github.com/minio/sha256-simd"
	"go.firedancer.io/executor/pkg/accounts"
	"go.firedancer.io/executor/pkg/base58"
	"go.firedancer.io/executor/pkg/executor"
	"go.firedancer.io/executor/pkg/sealevel"
	"go.firedancer.io/executor/pkg/vaulttx"
	"k8s.io/klog/v2"
)

const ProgramAddrStr = "G69kA5xoXCavcekguee2Md15nw7Gd6Q44EjaAcJNx1yi"

var ProgramAddr = solana.PublicKey(base58.MustDecodeFromString(ProgramAddrStr))

var (
	ErrAccountAlreadyInitialized    = errors.New("ErrAccountAlreadyInitialized")
	ErrAccountNotInitialized        = errors.New("ErrAccountNotInitialized")
	ErrAccountDidNotSerialize       = errors.New("ErrAccountDidNotSerialize")
	ErrAccountDidNotDeserialize     = errors.New("ErrAccountDidNotDeserialize")
	ErrAccountOwnedByWrongProgram   = errors.New("ErrAccountOwnedByWrongProgram")
	ErrAccountNotSigner             = errors.New("ErrAccountNotSigner")
	ErrAccountNotMutable            = errors.New("ErrAccountNotMutable")
	ErrAccountInUse                 = errors.New("ErrAccountInUse")
	ErrInvalidProgramId             = errors.New("ErrInvalidProgramId")
	ErrInstructionMissing           = errors.New("ErrInstructionMissing")
	ErrInstructionFallbackNotFound  = errors.New("ErrInstructionFallbackNotFound")
	ErrInstructionDidNotDeserialize = errors.New("ErrInstructionDidNotDeserialize")
)

// InvokerFactory returns the invoker used for one execution. callers are
// the message accounts with the privileges the caller actually holds.
type InvokerFactory func(callers []sealevel.AccountMeta) executor.Invoker

// NativeInvokerFactory runs invocations on the native runtime against accts.
func NativeInvokerFactory(accts accounts.Accounts) InvokerFactory {
	return func(callers []sealevel.AccountMeta) executor.Invoker {
		return sealevel.NewExecutionCtx(accts, callers, sealevel.DefaultComputeUnitLimit)
	}
}

type Program struct {
	Accounts   accounts.Accounts
	Locker     *accounts.Locker
	NewInvoker InvokerFactory
	Metrics    *Metrics
}

func New(accts accounts.Accounts, newInvoker InvokerFactory, metrics *Metrics) *Program {
	return &Program{
		Accounts:   accts,
		Locker:     accounts.NewLocker(),
		NewInvoker: newInvoker,
		Metrics:    metrics,
	}
}

func instructionDiscriminator(name string) [8]byte {
	var out [8]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(out[:], sum[:8])
	return out
}

// InitializeTransaction stores msg verbatim in a new record of exactly
// space bytes at txKey.
func (p *Program) InitializeTransaction(payer sealevel.AccountMeta, txKey solana.PublicKey, space uint64, msg *vaulttx.VaultTransactionMessage) error {
	if !payer.IsSigner {
		return fmt.Errorf("%w: payer %s", ErrAccountNotSigner, payer.Pubkey)
	}
	if !payer.IsWritable {
		return fmt.Errorf("%w: payer %s", ErrAccountNotMutable, payer.Pubkey)
	}

	if !p.Locker.TryLock(txKey) {
		return fmt.Errorf("%w: %s", ErrAccountInUse, txKey)
	}
	defer p.Locker.Unlock(txKey)

	_, err := p.Accounts.GetAccount(txKey)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInitialized, txKey)
	} else if !errors.Is(err, accounts.ErrNoAccount) {
		return err
	}

	data, err := vaulttx.MarshalTransaction(&vaulttx.Transaction{Message: *msg})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAccountDidNotSerialize, err)
	}
	if uint64(len(data)) > space {
		return fmt.Errorf("%w: record needs %d bytes, space is %d", ErrAccountDidNotSerialize, len(data), space)
	}

	record := make([]byte, space)
	copy(record, data)

	err = p.Accounts.SetAccount(txKey, &accounts.Account{Key: txKey, Owner: ProgramAddr, Data: record})
	if err != nil {
		return err
	}

	klog.Infof("Transaction initialized: %s (%d bytes, %d instructions)", txKey, space, len(msg.Instructions))
	p.Metrics.transactionInitialized()
	return nil
}

// Execute runs the message stored at txKey. remaining lists the lookup
// table accounts, one per address table lookup, followed by the message
// accounts.
func (p *Program) Execute(ctx context.Context, txKey solana.PublicKey, remaining []sealevel.AccountMeta) error {
	if !p.Locker.TryLock(txKey) {
		return fmt.Errorf("%w: %s", ErrAccountInUse, txKey)
	}
	defer p.Locker.Unlock(txKey)

	err := p.execute(ctx, txKey, remaining)
	p.Metrics.executionFinished(err)
	return err
}

func (p *Program) execute(ctx context.Context, txKey solana.PublicKey, remaining []sealevel.AccountMeta) error {
	record, tx, err := p.loadRecord(txKey)
	if err != nil {
		return err
	}

	numLookups := len(tx.Message.AddressTableLookups)
	if len(remaining) < numLookups {
		return fmt.Errorf("%w: %d remaining accounts, %d lookup tables", executor.ExecutorErrInvalidNumberOfAccounts, len(remaining), numLookups)
	}

	lookupTableInfos, err := p.accountInfos(remaining[:numLookups])
	if err != nil {
		return err
	}
	messageInfos, err := p.accountInfos(remaining[numLookups:])
	if err != nil {
		return err
	}

	em, err := executor.NewValidated(&tx.Message, messageInfos, lookupTableInfos)
	if err != nil {
		return err
	}

	klog.Infof("executing transaction %s: %s", txKey, describeMessage(&tx.Message))

	invoker := &countingInvoker{inner: p.NewInvoker(remaining[numLookups:]), metrics: p.Metrics}
	err = em.ExecuteMessage(ctx, invoker, executor.WithDrainHook(func(drained *vaulttx.VaultTransactionMessage) error {
		return p.storeRecord(record, drained)
	}))
	p.Metrics.instructionsExecuted(invoker.count)
	return err
}

func (p *Program) loadRecord(txKey solana.PublicKey) (*accounts.Account, *vaulttx.Transaction, error) {
	record, err := p.Accounts.GetAccount(txKey)
	if errors.Is(err, accounts.ErrNoAccount) {
		return nil, nil, fmt.Errorf("%w: %s", ErrAccountNotInitialized, txKey)
	} else if err != nil {
		return nil, nil, err
	}

	if record.Owner != ProgramAddr {
		return nil, nil, fmt.Errorf("%w: %s is owned by %s", ErrAccountOwnedByWrongProgram, txKey, record.Owner)
	}

	tx, err := vaulttx.UnmarshalTransaction(record.Data)
	if errors.Is(err, vaulttx.ErrAccountDiscriminatorMismatch) {
		return nil, nil, fmt.Errorf("%w: %s", err, txKey)
	} else if err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrAccountDidNotDeserialize, err)
	}

	return record, tx, nil
}

// describeMessage summarizes msg for logs. The digest is left out when the
// message cannot be encoded.
func describeMessage(msg *vaulttx.VaultTransactionMessage) string {
	hash, err := msg.Hash()
	if err != nil {
		return fmt.Sprintf("%d instructions", len(msg.Instructions))
	}
	return fmt.Sprintf("%d instructions (message %x)", len(msg.Instructions), hash[:8])
}

// storeRecord writes msg back into record, keeping the record's size.
func (p *Program) storeRecord(record *accounts.Account, msg *vaulttx.VaultTransactionMessage) error {
	data, err := vaulttx.MarshalTransaction(&vaulttx.Transaction{Message: *msg})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAccountDidNotSerialize, err)
	}
	if len(data) > len(record.Data) {
		return fmt.Errorf("%w: record needs %d bytes, space is %d", ErrAccountDidNotSerialize, len(data), len(record.Data))
	}

	updated := record.Clone()
	clear(updated.Data)
	copy(updated.Data, data)
	return p.Accounts.SetAccount(updated.Key, updated)
}

// accountInfos pairs caller-supplied metas with the state of their accounts.
// Accounts that do not exist have a zero owner and no data.
func (p *Program) accountInfos(metas []sealevel.AccountMeta) ([]executor.AccountInfo, error) {
	infos := make([]executor.AccountInfo, 0, len(metas))
	for _, meta := range metas {
		info := executor.AccountInfo{Key: meta.Pubkey, IsSigner: meta.IsSigner, IsWritable: meta.IsWritable}

		acct, err := p.Accounts.GetAccount(meta.Pubkey)
		if err == nil {
			info.Owner = acct.Owner
			info.Data = acct.Data
		} else if !errors.Is(err, accounts.ErrNoAccount) {
			return nil, err
		}

		infos = append(infos, info)
	}
	return infos, nil
}

type countingInvoker struct {
	inner   executor.Invoker
	metrics *Metrics
	count   int
}

func (c *countingInvoker) Invoke(ctx context.Context, req executor.InvokeRequest) error {
	c.count++
	err := c.inner.Invoke(ctx, req)
	c.metrics.invocationFinished(req.ProgramId, err)
	return err
}
