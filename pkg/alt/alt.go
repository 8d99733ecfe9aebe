// Package alt reads address lookup table accounts.
//
// Lookup tables are append-only lists of addresses owned by the address
// lookup table program. A message refers to entries by their position, so
// an index resolved once keeps naming the same address for the life of the
// table.
package alt

import (
	"bytes"
	"errors"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/executor/pkg/base58"
)

const AddressLookupTableProgramAddrStr = "AddressLookupTab1e1111111111111111111111111"

var AddressLookupTableProgramAddr = solana.PublicKey(base58.MustDecodeFromString(AddressLookupTableProgramAddrStr))

const LookupTableMaxAddresses = 256

const AddressLookupTableMetaSize = 56

// account states
const (
	AddressLookupTableProgramStateUninitialized = iota
	AddressLookupTableProgramStateLookupTable
)

var (
	ErrInvalidAccountData    = errors.New("ErrInvalidAccountData")
	ErrUninitializedAccount  = errors.New("ErrUninitializedAccount")
	ErrInvalidAccountOwner   = errors.New("ErrInvalidAccountOwner")
	ErrLookupTableFull       = errors.New("ErrLookupTableFull")
	ErrLookupTableNotFound   = errors.New("ErrLookupTableNotFound")
	ErrLookupTableIndexRange = errors.New("ErrLookupTableIndexRange")
)

type LookupTableMeta struct {
	DeactivationSlot           uint64
	LastExtendedSlot           uint64
	LastExtendedSlotStartIndex byte
	Authority                  *solana.PublicKey
	Padding                    uint16
}

type AddressLookupTable struct {
	State     uint32
	Meta      LookupTableMeta
	Addresses []solana.PublicKey
}

// AddressLookupTableAccount is a table's address paired with its current
// address list, as handed to the compiler.
type AddressLookupTableAccount struct {
	Key       solana.PublicKey
	Addresses []solana.PublicKey
}

// NewAddressLookupTable returns an active table with no addresses.
func NewAddressLookupTable(authority *solana.PublicKey) *AddressLookupTable {
	return &AddressLookupTable{
		State: AddressLookupTableProgramStateLookupTable,
		Meta:  LookupTableMeta{DeactivationSlot: math.MaxUint64, Authority: authority},
	}
}

// Lookup returns the address at position idx.
func (table *AddressLookupTable) Lookup(idx uint8) (solana.PublicKey, error) {
	return lookupAddress(table.Addresses, idx)
}

// Lookup returns the address at position idx.
func (table *AddressLookupTableAccount) Lookup(idx uint8) (solana.PublicKey, error) {
	return lookupAddress(table.Addresses, idx)
}

func lookupAddress(addresses []solana.PublicKey, idx uint8) (solana.PublicKey, error) {
	if int(idx) >= len(addresses) {
		return solana.PublicKey{}, ErrLookupTableIndexRange
	}
	return addresses[idx], nil
}

// Extend appends addresses, recording the slot of the extension.
func (table *AddressLookupTable) Extend(slot uint64, newAddresses []solana.PublicKey) error {
	if len(table.Addresses)+len(newAddresses) > LookupTableMaxAddresses {
		return ErrLookupTableFull
	}
	if slot != table.Meta.LastExtendedSlot {
		table.Meta.LastExtendedSlot = slot
		table.Meta.LastExtendedSlotStartIndex = byte(len(table.Addresses))
	}
	table.Addresses = append(table.Addresses, newAddresses...)
	return nil
}

func (lookupTableMeta *LookupTableMeta) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error

	lookupTableMeta.DeactivationSlot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	lookupTableMeta.LastExtendedSlot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	lookupTableMeta.LastExtendedSlotStartIndex, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	hasAuthority, err := decoder.ReadBool()
	if err != nil {
		return err
	}

	// the authority slot is always present on-chain, zeroed when unset
	authorityBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	if hasAuthority {
		authorityPk := solana.PublicKeyFromBytes(authorityBytes)
		lookupTableMeta.Authority = authorityPk.ToPointer()
	}

	lookupTableMeta.Padding, err = decoder.ReadUint16(bin.LE)
	return err
}

func (lookupTableMeta *LookupTableMeta) MarshalWithEncoder(encoder *bin.Encoder) error {
	var err error

	err = encoder.WriteUint64(lookupTableMeta.DeactivationSlot, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(lookupTableMeta.LastExtendedSlot, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(lookupTableMeta.LastExtendedSlotStartIndex)
	if err != nil {
		return err
	}

	var authority solana.PublicKey
	if lookupTableMeta.Authority != nil {
		authority = *lookupTableMeta.Authority
	}

	err = encoder.WriteBool(lookupTableMeta.Authority != nil)
	if err != nil {
		return err
	}

	err = encoder.WriteBytes(authority[:], false)
	if err != nil {
		return err
	}

	return encoder.WriteUint16(lookupTableMeta.Padding, bin.LE)
}

func UnmarshalAddressLookupTable(data []byte) (*AddressLookupTable, error) {
	addrLookupTable := new(AddressLookupTable)
	decoder := bin.NewBinDecoder(data)

	state, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, ErrInvalidAccountData
	}

	if state == AddressLookupTableProgramStateUninitialized {
		return nil, ErrUninitializedAccount
	} else if state != AddressLookupTableProgramStateLookupTable {
		return nil, ErrInvalidAccountData
	}

	if len(data) < AddressLookupTableMetaSize {
		return nil, ErrInvalidAccountData
	}

	err = addrLookupTable.Meta.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, ErrInvalidAccountData
	}

	addrLookupTable.State = state

	rawAddrData := data[AddressLookupTableMetaSize:]
	if (len(rawAddrData) % solana.PublicKeyLength) != 0 {
		return nil, ErrInvalidAccountData
	}

	addrs := make([]solana.PublicKey, 0, len(rawAddrData)/solana.PublicKeyLength)
	for pos := 0; pos < len(rawAddrData); pos += solana.PublicKeyLength {
		addrs = append(addrs, solana.PublicKeyFromBytes(rawAddrData[pos:pos+solana.PublicKeyLength]))
	}
	addrLookupTable.Addresses = addrs

	return addrLookupTable, nil
}

func MarshalAddressLookupTable(addrLookupTable *AddressLookupTable) ([]byte, error) {
	buffer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buffer)

	err := encoder.WriteUint32(addrLookupTable.State, bin.LE)
	if err != nil {
		return nil, err
	}

	// nothing else to serialize up for an uninitialized account state
	if addrLookupTable.State == AddressLookupTableProgramStateUninitialized {
		return buffer.Bytes(), nil
	}

	err = addrLookupTable.Meta.MarshalWithEncoder(encoder)
	if err != nil {
		return nil, err
	}

	for _, addr := range addrLookupTable.Addresses {
		err = encoder.WriteBytes(addr[:], false)
		if err != nil {
			return nil, err
		}
	}

	return buffer.Bytes(), nil
}
