// Package compiler turns a batch of instructions and a fee payer into a
// deduplicated VaultTransactionMessage, moving eligible addresses into
// address lookup table references.
package compiler

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/tidwall/btree"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/sealevel"
	"go.firedancer.io/executor/pkg/util"
	"go.firedancer.io/executor/pkg/vaulttx"
)

type CompiledKeyMeta struct {
	IsSigner   bool
	IsWritable bool
	IsInvoked  bool
}

type compiledKey struct {
	Key  solana.PublicKey
	Meta CompiledKeyMeta
}

func compiledKeyLess(a, b compiledKey) bool {
	return util.PubkeyCmp(a.Key, b.Key)
}

// CompiledKeys accumulates the privileges of every address referenced by a
// batch. Addresses are kept ordered by their raw bytes so that output never
// depends on input map iteration.
type CompiledKeys struct {
	payer      *solana.PublicKey
	keyMetaMap *btree.BTreeG[compiledKey]
}

// MessageHeader counts the static keys the way a legacy message header does.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

type LoadedAddresses struct {
	Writable []solana.PublicKey
	Readonly []solana.PublicKey
}

func (ck *CompiledKeys) update(key solana.PublicKey, fn func(meta *CompiledKeyMeta)) {
	entry, _ := ck.keyMetaMap.Get(compiledKey{Key: key})
	entry.Key = key
	fn(&entry.Meta)
	ck.keyMetaMap.Set(entry)
}

// Compile records every program id and account of the instructions. Program
// ids are not marked as invoked, which keeps them eligible for lookup table
// extraction.
func Compile(instructions []sealevel.Instruction, payer *solana.PublicKey) *CompiledKeys {
	ck := &CompiledKeys{
		payer:      payer,
		keyMetaMap: btree.NewBTreeG[compiledKey](compiledKeyLess),
	}

	for _, instr := range instructions {
		ck.update(instr.ProgramId, func(meta *CompiledKeyMeta) {
			meta.IsInvoked = false
		})

		for _, am := range instr.Accounts {
			ck.update(am.Pubkey, func(meta *CompiledKeyMeta) {
				meta.IsSigner = meta.IsSigner || am.IsSigner
				meta.IsWritable = meta.IsWritable || am.IsWritable
			})
		}
	}

	if payer != nil {
		ck.update(*payer, func(meta *CompiledKeyMeta) {
			meta.IsSigner = true
			meta.IsWritable = true
		})
	}

	return ck
}

// TryExtractTableLookup moves every non-signer, non-invoked key found in the
// table out of the static set. Writable keys are drained before readonly
// ones and each key resolves to the first matching table entry. A nil
// lookup is returned when the table contains none of the keys.
func (ck *CompiledKeys) TryExtractTableLookup(table alt.AddressLookupTableAccount) (*vaulttx.MessageAddressTableLookup, *LoadedAddresses, error) {
	writableIndexes, drainedWritableKeys, err := ck.tryDrainKeysFoundInLookupTable(table.Addresses, func(meta CompiledKeyMeta) bool {
		return !meta.IsSigner && !meta.IsInvoked && meta.IsWritable
	})
	if err != nil {
		return nil, nil, err
	}

	readonlyIndexes, drainedReadonlyKeys, err := ck.tryDrainKeysFoundInLookupTable(table.Addresses, func(meta CompiledKeyMeta) bool {
		return !meta.IsSigner && !meta.IsInvoked && !meta.IsWritable
	})
	if err != nil {
		return nil, nil, err
	}

	if len(writableIndexes) == 0 && len(readonlyIndexes) == 0 {
		return nil, nil, nil
	}

	lookup := &vaulttx.MessageAddressTableLookup{
		AccountKey:      table.Key,
		WritableIndexes: writableIndexes,
		ReadonlyIndexes: readonlyIndexes,
	}
	loaded := &LoadedAddresses{Writable: drainedWritableKeys, Readonly: drainedReadonlyKeys}

	return lookup, loaded, nil
}

func (ck *CompiledKeys) tryDrainKeysFoundInLookupTable(lookupTableAddresses []solana.PublicKey, keyMetaFilter func(meta CompiledKeyMeta) bool) ([]uint8, []solana.PublicKey, error) {
	var candidates []solana.PublicKey
	ck.keyMetaMap.Scan(func(entry compiledKey) bool {
		if keyMetaFilter(entry.Meta) {
			candidates = append(candidates, entry.Key)
		}
		return true
	})

	lookupTableIndexes := make([]uint8, 0)
	drainedKeys := make([]solana.PublicKey, 0)

	for _, key := range candidates {
		for idx, addr := range lookupTableAddresses {
			if addr != key {
				continue
			}
			if idx > math.MaxUint8 {
				return nil, nil, fmt.Errorf("%w: %s at table position %d", ErrAddressTableLookupIndexOverflow, key, idx)
			}
			lookupTableIndexes = append(lookupTableIndexes, uint8(idx))
			drainedKeys = append(drainedKeys, key)
			ck.keyMetaMap.Delete(compiledKey{Key: key})
			break
		}
	}

	return lookupTableIndexes, drainedKeys, nil
}

// TryIntoMessageComponents lays out the static keys: payer first, then
// writable signers, readonly signers, writable non-signers and readonly
// non-signers.
func (ck *CompiledKeys) TryIntoMessageComponents() (MessageHeader, []solana.PublicKey, error) {
	var writableSignerKeys, readonlySignerKeys, writableNonSignerKeys, readonlyNonSignerKeys []solana.PublicKey

	if ck.payer != nil {
		writableSignerKeys = append(writableSignerKeys, *ck.payer)
	}

	ck.keyMetaMap.Scan(func(entry compiledKey) bool {
		if ck.payer != nil && entry.Key == *ck.payer {
			return true
		}

		switch {
		case entry.Meta.IsSigner && entry.Meta.IsWritable:
			writableSignerKeys = append(writableSignerKeys, entry.Key)
		case entry.Meta.IsSigner:
			readonlySignerKeys = append(readonlySignerKeys, entry.Key)
		case entry.Meta.IsWritable:
			writableNonSignerKeys = append(writableNonSignerKeys, entry.Key)
		default:
			readonlyNonSignerKeys = append(readonlyNonSignerKeys, entry.Key)
		}
		return true
	})

	numSigners := len(writableSignerKeys) + len(readonlySignerKeys)
	for _, n := range []int{len(writableSignerKeys), len(readonlySignerKeys), len(writableNonSignerKeys), len(readonlyNonSignerKeys), numSigners} {
		if n > math.MaxUint8 {
			return MessageHeader{}, nil, fmt.Errorf("%w: %d keys in one group", ErrAccountIndexOverflow, n)
		}
	}

	header := MessageHeader{
		NumRequiredSignatures:       uint8(numSigners),
		NumReadonlySignedAccounts:   uint8(len(readonlySignerKeys)),
		NumReadonlyUnsignedAccounts: uint8(len(readonlyNonSignerKeys)),
	}

	staticAccountKeys := make([]solana.PublicKey, 0, numSigners+len(writableNonSignerKeys)+len(readonlyNonSignerKeys))
	staticAccountKeys = append(staticAccountKeys, writableSignerKeys...)
	staticAccountKeys = append(staticAccountKeys, readonlySignerKeys...)
	staticAccountKeys = append(staticAccountKeys, writableNonSignerKeys...)
	staticAccountKeys = append(staticAccountKeys, readonlyNonSignerKeys...)

	if len(staticAccountKeys) > vaulttx.MaxAccountKeys {
		return MessageHeader{}, nil, fmt.Errorf("%w: %d static keys", ErrAccountIndexOverflow, len(staticAccountKeys))
	}

	return header, staticAccountKeys, nil
}
