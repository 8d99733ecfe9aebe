package compiler

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/sealevel"
	"go.firedancer.io/executor/pkg/vaulttx"
	"k8s.io/klog/v2"
)

// TryCompile builds the message for instructions paid for by payer.
// Addresses found in tables are referenced through them. Tables are tried
// in the given order, so an address present in several tables is claimed
// by the first one.
func TryCompile(payer solana.PublicKey, instructions []sealevel.Instruction, tables []alt.AddressLookupTableAccount) (*vaulttx.VaultTransactionMessage, error) {
	compiledKeys := Compile(instructions, &payer)

	addressTableLookups := make([]vaulttx.MessageAddressTableLookup, 0)
	var loadedWritable, loadedReadonly []solana.PublicKey

	for _, table := range tables {
		lookup, loaded, err := compiledKeys.TryExtractTableLookup(table)
		if err != nil {
			return nil, err
		}
		if lookup == nil {
			klog.V(3).Infof("no addresses resolved through table %s", table.Key)
			continue
		}
		addressTableLookups = append(addressTableLookups, *lookup)
		loadedWritable = append(loadedWritable, loaded.Writable...)
		loadedReadonly = append(loadedReadonly, loaded.Readonly...)
	}

	header, staticAccountKeys, err := compiledKeys.TryIntoMessageComponents()
	if err != nil {
		return nil, err
	}

	numAllKeys := len(staticAccountKeys) + len(loadedWritable) + len(loadedReadonly)
	if numAllKeys > vaulttx.MaxAccountKeys {
		return nil, fmt.Errorf("%w: %d addresses", ErrAccountIndexOverflow, numAllKeys)
	}

	keyIndexes := make(map[solana.PublicKey]uint8, numAllKeys)
	for _, keys := range [][]solana.PublicKey{staticAccountKeys, loadedWritable, loadedReadonly} {
		for _, key := range keys {
			if _, exists := keyIndexes[key]; !exists {
				keyIndexes[key] = uint8(len(keyIndexes))
			}
		}
	}

	compiledInstructions := make([]vaulttx.CompiledInstruction, 0, len(instructions))
	for instrIdx, instr := range instructions {
		programIdIndex, ok := keyIndexes[instr.ProgramId]
		if !ok {
			return nil, fmt.Errorf("%w: instruction %d program %s", ErrUnknownInstructionKey, instrIdx, instr.ProgramId)
		}

		accountIndexes := make([]uint8, 0, len(instr.Accounts))
		for _, am := range instr.Accounts {
			idx, ok := keyIndexes[am.Pubkey]
			if !ok {
				return nil, fmt.Errorf("%w: instruction %d account %s", ErrUnknownInstructionKey, instrIdx, am.Pubkey)
			}
			accountIndexes = append(accountIndexes, idx)
		}

		compiledInstructions = append(compiledInstructions, vaulttx.CompiledInstruction{
			ProgramIDIndex: programIdIndex,
			AccountIndexes: accountIndexes,
			Data:           instr.Data,
		})
	}

	numSigners := header.NumRequiredSignatures
	msg := &vaulttx.VaultTransactionMessage{
		NumSigners:            numSigners,
		NumWritableSigners:    numSigners - header.NumReadonlySignedAccounts,
		NumWritableNonSigners: uint8(len(staticAccountKeys) - int(numSigners) - int(header.NumReadonlyUnsignedAccounts)),
		AccountKeys:           staticAccountKeys,
		Instructions:          compiledInstructions,
		AddressTableLookups:   addressTableLookups,
	}

	klog.V(2).Infof("compiled %d instructions: %d static keys, %d lookups (%d writable, %d readonly)",
		len(compiledInstructions), len(staticAccountKeys), len(addressTableLookups), len(loadedWritable), len(loadedReadonly))

	return msg, nil
}
