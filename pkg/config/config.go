// Package config reads YAML batch descriptions for the executor CLI.
package config

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
	"go.firedancer.io/executor/pkg/accounts"
	"go.firedancer.io/executor/pkg/alt"
	b58 "go.firedancer.io/executor/pkg/base58"
	"go.firedancer.io/executor/pkg/sealevel"
	"gopkg.in/yaml.v3"
)

var ErrInvalidBatch = errors.New("ErrInvalidBatch")

type Batch struct {
	Payer        string            `yaml:"payer"`
	Space        uint64            `yaml:"space"`
	Instructions []InstructionSpec `yaml:"instructions"`
	LookupTables []LookupTableSpec `yaml:"lookup_tables"`
	Ledger       []LedgerAccount   `yaml:"ledger"`
}

// InstructionSpec describes one instruction. Exactly one of Program,
// Transfer or Memo is set.
type InstructionSpec struct {
	Program  string        `yaml:"program"`
	Accounts []AccountSpec `yaml:"accounts"`
	Data     string        `yaml:"data"`

	Transfer *TransferSpec `yaml:"transfer"`
	Memo     *MemoSpec     `yaml:"memo"`
}

type AccountSpec struct {
	Pubkey   string `yaml:"pubkey"`
	Signer   bool   `yaml:"signer"`
	Writable bool   `yaml:"writable"`
}

type TransferSpec struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Lamports uint64 `yaml:"lamports"`
}

type MemoSpec struct {
	Text    string   `yaml:"text"`
	Signers []string `yaml:"signers"`
}

// LookupTableSpec names a lookup table. Tables without inline addresses
// are fetched over RPC.
type LookupTableSpec struct {
	Address   string   `yaml:"address"`
	Addresses []string `yaml:"addresses"`
}

type LedgerAccount struct {
	Pubkey   string `yaml:"pubkey"`
	Lamports uint64 `yaml:"lamports"`
}

func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBatch(data)
}

func ParseBatch(data []byte) (*Batch, error) {
	batch := new(Batch)
	if err := yaml.Unmarshal(data, batch); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBatch, err)
	}
	if batch.Payer == "" {
		return nil, fmt.Errorf("%w: payer is required", ErrInvalidBatch)
	}
	return batch, nil
}

func ParsePubkey(s string) (solana.PublicKey, error) {
	key, err := b58.DecodeFromString(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: bad address %q: %s", ErrInvalidBatch, s, err)
	}
	return solana.PublicKey(key), nil
}

// ParseData decodes instruction data written as "hex:", "base64:" or
// "base58:" followed by the encoded bytes. Without a prefix the string is
// taken as raw UTF-8.
func ParseData(s string) ([]byte, error) {
	prefix, encoded, found := strings.Cut(s, ":")
	if !found {
		return []byte(s), nil
	}

	var data []byte
	var err error
	switch prefix {
	case "hex":
		data, err = hex.DecodeString(encoded)
	case "base64":
		data, err = base64.StdEncoding.DecodeString(encoded)
	case "base58":
		data, err = base58.Decode(encoded)
	default:
		return []byte(s), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: bad %s data: %s", ErrInvalidBatch, prefix, err)
	}
	return data, nil
}

func (b *Batch) PayerKey() (solana.PublicKey, error) {
	return ParsePubkey(b.Payer)
}

func (b *Batch) BuildInstructions() ([]sealevel.Instruction, error) {
	instrs := make([]sealevel.Instruction, 0, len(b.Instructions))
	for i, spec := range b.Instructions {
		instr, err := spec.build()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		instrs = append(instrs, instr)
	}
	return instrs, nil
}

func (spec *InstructionSpec) build() (sealevel.Instruction, error) {
	switch {
	case spec.Transfer != nil:
		from, err := ParsePubkey(spec.Transfer.From)
		if err != nil {
			return sealevel.Instruction{}, err
		}
		to, err := ParsePubkey(spec.Transfer.To)
		if err != nil {
			return sealevel.Instruction{}, err
		}
		return sealevel.InstructionFromSolana(system.NewTransferInstruction(spec.Transfer.Lamports, from, to).Build())

	case spec.Memo != nil:
		instr := sealevel.Instruction{ProgramId: sealevel.MemoProgramAddr, Data: []byte(spec.Memo.Text)}
		for _, s := range spec.Memo.Signers {
			signer, err := ParsePubkey(s)
			if err != nil {
				return sealevel.Instruction{}, err
			}
			instr.Accounts = append(instr.Accounts, sealevel.AccountMeta{Pubkey: signer, IsSigner: true})
		}
		return instr, nil

	case spec.Program != "":
		programId, err := ParsePubkey(spec.Program)
		if err != nil {
			return sealevel.Instruction{}, err
		}
		data, err := ParseData(spec.Data)
		if err != nil {
			return sealevel.Instruction{}, err
		}
		instr := sealevel.Instruction{ProgramId: programId, Data: data}
		for _, acct := range spec.Accounts {
			key, err := ParsePubkey(acct.Pubkey)
			if err != nil {
				return sealevel.Instruction{}, err
			}
			instr.Accounts = append(instr.Accounts, sealevel.AccountMeta{Pubkey: key, IsSigner: acct.Signer, IsWritable: acct.Writable})
		}
		return instr, nil
	}

	return sealevel.Instruction{}, fmt.Errorf("%w: instruction needs program, transfer or memo", ErrInvalidBatch)
}

// TableFetcher fetches lookup tables by key, keeping the order of keys.
type TableFetcher func(ctx context.Context, keys []solana.PublicKey) ([]alt.AddressLookupTableAccount, error)

// Tables returns the batch's lookup tables in batch order. Tables listed
// without addresses are fetched with fetch, which may be nil when every
// table is inline.
func (b *Batch) Tables(ctx context.Context, fetch TableFetcher) ([]alt.AddressLookupTableAccount, error) {
	tables := make([]alt.AddressLookupTableAccount, len(b.LookupTables))
	var remoteKeys []solana.PublicKey
	var remotePositions []int

	for i, spec := range b.LookupTables {
		key, err := ParsePubkey(spec.Address)
		if err != nil {
			return nil, err
		}
		tables[i].Key = key

		if len(spec.Addresses) == 0 {
			remoteKeys = append(remoteKeys, key)
			remotePositions = append(remotePositions, i)
			continue
		}

		for _, s := range spec.Addresses {
			addr, err := ParsePubkey(s)
			if err != nil {
				return nil, err
			}
			tables[i].Addresses = append(tables[i].Addresses, addr)
		}
	}

	if len(remoteKeys) == 0 {
		return tables, nil
	}
	if fetch == nil {
		return nil, fmt.Errorf("%w: table %s has no addresses and no RPC endpoint is configured", ErrInvalidBatch, remoteKeys[0])
	}

	fetched, err := fetch(ctx, remoteKeys)
	if err != nil {
		return nil, err
	}
	for i, pos := range remotePositions {
		tables[pos] = fetched[i]
	}
	return tables, nil
}

// LedgerAccounts returns the starting balances listed in the batch.
func (b *Batch) LedgerAccounts() ([]accounts.Account, error) {
	accts := make([]accounts.Account, 0, len(b.Ledger))
	for _, entry := range b.Ledger {
		key, err := ParsePubkey(entry.Pubkey)
		if err != nil {
			return nil, err
		}
		accts = append(accts, accounts.Account{Key: key, Lamports: entry.Lamports, Owner: sealevel.SystemProgramAddr})
	}
	return accts, nil
}
