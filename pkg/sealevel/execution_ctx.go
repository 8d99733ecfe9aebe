package sealevel

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/accounts"
	"go.firedancer.io/executor/pkg/cu"
	"k8s.io/klog/v2"
)

// ExecutionCtx runs native program instructions against an account store.
// Every invoked instruction is checked against the privileges of the
// caller's accounts: a callee may only sign or write with accounts the
// caller itself signed or made writable.
type ExecutionCtx struct {
	Accounts     accounts.Accounts
	ComputeMeter cu.ComputeMeter
	Log          Logger

	callers map[solana.PublicKey]AccountMeta
}

func NewExecutionCtx(accts accounts.Accounts, callers []AccountMeta, computeUnitLimit uint64) *ExecutionCtx {
	execCtx := &ExecutionCtx{
		Accounts:     accts,
		ComputeMeter: cu.NewComputeMeter(computeUnitLimit),
		Log:          new(LogRecorder),
		callers:      make(map[solana.PublicKey]AccountMeta, len(callers)),
	}

	for _, caller := range callers {
		existing := execCtx.callers[caller.Pubkey]
		existing.Pubkey = caller.Pubkey
		existing.IsSigner = existing.IsSigner || caller.IsSigner
		existing.IsWritable = existing.IsWritable || caller.IsWritable
		execCtx.callers[caller.Pubkey] = existing
	}

	return execCtx
}

// PrepareInstruction merges duplicate account metas and checks them, and
// the program id, against the caller's privileges.
func (execCtx *ExecutionCtx) PrepareInstruction(ix Instruction, signers []solana.PublicKey) ([]InstructionAccount, error) {
	merged := make(map[solana.PublicKey]AccountMeta, len(ix.Accounts))
	for _, accountMeta := range ix.Accounts {
		m := merged[accountMeta.Pubkey]
		m.Pubkey = accountMeta.Pubkey
		m.IsSigner = m.IsSigner || accountMeta.IsSigner
		m.IsWritable = m.IsWritable || accountMeta.IsWritable
		merged[accountMeta.Pubkey] = m
	}

	checked := make(map[solana.PublicKey]bool, len(merged))
	for _, accountMeta := range ix.Accounts {
		if checked[accountMeta.Pubkey] {
			continue
		}
		checked[accountMeta.Pubkey] = true

		m := merged[accountMeta.Pubkey]
		caller, ok := execCtx.callers[m.Pubkey]
		if !ok {
			klog.Errorf("instruction references unknown account %s", m.Pubkey)
			return nil, InstrErrMissingAccount
		}

		// "Read-only in caller cannot become writable in callee"
		if m.IsWritable && !caller.IsWritable {
			klog.Errorf("%s writable privilege escalated", m.Pubkey)
			return nil, InstrErrPrivilegeEscalation
		}

		presentInSigners := false
		for _, addr := range signers {
			if addr == m.Pubkey {
				presentInSigners = true
				break
			}
		}
		if m.IsSigner && !(caller.IsSigner || presentInSigners) {
			klog.Errorf("%s signer privilege escalated", m.Pubkey)
			return nil, InstrErrPrivilegeEscalation
		}
	}

	if _, ok := execCtx.callers[ix.ProgramId]; !ok {
		klog.Errorf("unknown program %s", ix.ProgramId)
		return nil, InstrErrMissingAccount
	}

	instructionAccounts := make([]InstructionAccount, 0, len(ix.Accounts))
	for idx, accountMeta := range ix.Accounts {
		m := merged[accountMeta.Pubkey]
		instructionAccounts = append(instructionAccounts, InstructionAccount{
			Key:           m.Pubkey,
			IndexInCallee: uint64(idx),
			IsSigner:      m.IsSigner,
			IsWritable:    m.IsWritable,
		})
	}

	return instructionAccounts, nil
}

// Invoke executes a single instruction. Account changes are written back to
// the store only when the program returns without error.
func (execCtx *ExecutionCtx) Invoke(ctx context.Context, ix Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	instructionAccounts, err := execCtx.PrepareInstruction(ix, nil)
	if err != nil {
		return err
	}

	programFn, err := ResolveNativeProgramById(ix.ProgramId)
	if err != nil {
		klog.Errorf("program %s is not a supported native program", ix.ProgramId)
		return err
	}

	instrCtx := &InstructionCtx{
		programId:           ix.ProgramId,
		Data:                ix.Data,
		instructionAccounts: instructionAccounts,
		loaded:              make(map[solana.PublicKey]*accounts.Account, len(instructionAccounts)),
		touched:             make(map[solana.PublicKey]bool),
	}

	for _, ia := range instructionAccounts {
		if _, ok := instrCtx.loaded[ia.Key]; ok {
			continue
		}
		acct, err := execCtx.loadAccount(ia.Key)
		if err != nil {
			return err
		}
		instrCtx.loaded[ia.Key] = acct
	}

	execCtx.Log.Log(fmt.Sprintf("Program %s invoke [1]", ix.ProgramId))

	err = programFn(execCtx, instrCtx)
	if err != nil {
		execCtx.Log.Log(fmt.Sprintf("Program %s failed: %s", ix.ProgramId, err))
		return err
	}

	for key := range instrCtx.touched {
		if err = execCtx.Accounts.SetAccount(key, instrCtx.loaded[key]); err != nil {
			return fmt.Errorf("storing account %s: %w", key, err)
		}
	}

	execCtx.Log.Log(fmt.Sprintf("Program %s success", ix.ProgramId))
	return nil
}

func (execCtx *ExecutionCtx) loadAccount(key solana.PublicKey) (*accounts.Account, error) {
	acct, err := execCtx.Accounts.GetAccount(key)
	if errors.Is(err, accounts.ErrNoAccount) {
		return &accounts.Account{Key: key, Owner: SystemProgramAddr}, nil
	} else if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", key, err)
	}
	return acct, nil
}
