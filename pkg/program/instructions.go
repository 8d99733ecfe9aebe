package program

import (
	"bytes"
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/sealevel"
	"go.firedancer.io/executor/pkg/vaulttx"
)

var (
	InitializeTransactionDiscriminator = instructionDiscriminator("initialize_transaction")
	ExecuteDiscriminator               = instructionDiscriminator("execute")
)

type InstrInitializeTransaction struct {
	Space   uint64
	Message vaulttx.VaultTransactionMessage
}

func (instr *InstrInitializeTransaction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	instr.Space, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	return instr.Message.UnmarshalWithDecoder(decoder)
}

func (instr *InstrInitializeTransaction) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(InitializeTransactionDiscriminator[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(instr.Space, bin.LE)
	if err != nil {
		return err
	}
	return instr.Message.MarshalWithEncoder(encoder)
}

// NewInitializeTransactionInstruction builds the instruction that stores msg
// in a new record at txKey. Both payer and txKey sign.
func NewInitializeTransactionInstruction(payer, txKey solana.PublicKey, space uint64, msg *vaulttx.VaultTransactionMessage) (sealevel.Instruction, error) {
	buf := new(bytes.Buffer)
	instr := InstrInitializeTransaction{Space: space, Message: *msg}
	if err := instr.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return sealevel.Instruction{}, err
	}

	return sealevel.Instruction{
		ProgramId: ProgramAddr,
		Accounts: []sealevel.AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: txKey, IsSigner: true, IsWritable: true},
			{Pubkey: sealevel.SystemProgramAddr},
		},
		Data: buf.Bytes(),
	}, nil
}

// NewExecuteInstruction builds the instruction that executes the record at
// txKey. remaining is usually built with RemainingAccounts.
func NewExecuteInstruction(txKey solana.PublicKey, remaining []sealevel.AccountMeta) sealevel.Instruction {
	accts := make([]sealevel.AccountMeta, 0, len(remaining)+1)
	accts = append(accts, sealevel.AccountMeta{Pubkey: txKey, IsWritable: true})
	accts = append(accts, remaining...)

	return sealevel.Instruction{
		ProgramId: ProgramAddr,
		Accounts:  accts,
		Data:      append([]byte(nil), ExecuteDiscriminator[:]...),
	}
}

// RemainingAccounts lists the accounts Execute expects for msg: one account
// per lookup table, then every address the message resolves to, with the
// privileges the message grants it.
func RemainingAccounts(msg *vaulttx.VaultTransactionMessage, tables []alt.AddressLookupTableAccount) ([]sealevel.AccountMeta, error) {
	byKey := make(map[solana.PublicKey]alt.AddressLookupTableAccount, len(tables))
	for _, table := range tables {
		byKey[table.Key] = table
	}

	remaining := make([]sealevel.AccountMeta, 0, len(msg.AddressTableLookups)+msg.NumAllAccountKeys())
	for _, lookup := range msg.AddressTableLookups {
		remaining = append(remaining, sealevel.AccountMeta{Pubkey: lookup.AccountKey})
	}

	for i, key := range msg.AccountKeys {
		remaining = append(remaining, sealevel.AccountMeta{Pubkey: key, IsSigner: msg.IsSignerIndex(i), IsWritable: msg.IsWritableIndex(i)})
	}

	resolve := func(lookup vaulttx.MessageAddressTableLookup, indexes []uint8, writable bool) error {
		table, ok := byKey[lookup.AccountKey]
		if !ok {
			return fmt.Errorf("%w: %s", alt.ErrLookupTableNotFound, lookup.AccountKey)
		}
		for _, idx := range indexes {
			if int(idx) >= len(table.Addresses) {
				return fmt.Errorf("%w: %s index %d", alt.ErrLookupTableIndexRange, lookup.AccountKey, idx)
			}
			remaining = append(remaining, sealevel.AccountMeta{Pubkey: table.Addresses[idx], IsWritable: writable})
		}
		return nil
	}

	for _, lookup := range msg.AddressTableLookups {
		if err := resolve(lookup, lookup.WritableIndexes, true); err != nil {
			return nil, err
		}
	}
	for _, lookup := range msg.AddressTableLookups {
		if err := resolve(lookup, lookup.ReadonlyIndexes, false); err != nil {
			return nil, err
		}
	}

	return remaining, nil
}

// Process decodes instruction data and dispatches it to the matching entry
// point, the way the runtime would call the program.
func (p *Program) Process(ctx context.Context, data []byte, accts []sealevel.AccountMeta) error {
	if len(data) < 8 {
		return ErrInstructionMissing
	}

	var discriminator [8]byte
	copy(discriminator[:], data[:8])
	decoder := bin.NewBinDecoder(data[8:])

	switch discriminator {
	case InitializeTransactionDiscriminator:
		var instr InstrInitializeTransaction
		if err := instr.UnmarshalWithDecoder(decoder); err != nil {
			return fmt.Errorf("%w: %s", ErrInstructionDidNotDeserialize, err)
		}
		if len(accts) < 3 {
			return sealevel.InstrErrNotEnoughAccountKeys
		}
		txAcct := accts[1]
		if !txAcct.IsSigner {
			return fmt.Errorf("%w: transaction %s", ErrAccountNotSigner, txAcct.Pubkey)
		}
		if !txAcct.IsWritable {
			return fmt.Errorf("%w: transaction %s", ErrAccountNotMutable, txAcct.Pubkey)
		}
		if accts[2].Pubkey != sealevel.SystemProgramAddr {
			return fmt.Errorf("%w: expected system program, got %s", ErrInvalidProgramId, accts[2].Pubkey)
		}
		return p.InitializeTransaction(accts[0], txAcct.Pubkey, instr.Space, &instr.Message)

	case ExecuteDiscriminator:
		if len(accts) < 1 {
			return sealevel.InstrErrNotEnoughAccountKeys
		}
		return p.Execute(ctx, accts[0].Pubkey, accts[1:])

	default:
		return ErrInstructionFallbackNotFound
	}
}
