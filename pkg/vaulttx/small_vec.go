package vaulttx

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// The compact form length-prefixes every list with a single byte, and
// instruction data with a u16. It is the smallest transferable encoding of
// a message and is what clients hand around before a record is created.

func writeSmallLen(encoder *bin.Encoder, n int) error {
	if n > math.MaxUint8 {
		return fmt.Errorf("list of %d entries does not fit a u8 length", n)
	}
	return encoder.WriteByte(uint8(n))
}

func writeSmallBytes(encoder *bin.Encoder, b []byte) error {
	err := writeSmallLen(encoder, len(b))
	if err != nil {
		return err
	}
	return encoder.WriteBytes(b, false)
}

func readSmallBytes(decoder *bin.Decoder) ([]byte, error) {
	n, err := decoder.ReadByte()
	if err != nil {
		return nil, err
	}
	return decoder.ReadNBytes(int(n))
}

func MarshalCompact(msg *VaultTransactionMessage) ([]byte, error) {
	buffer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buffer)

	for _, b := range []uint8{msg.NumSigners, msg.NumWritableSigners, msg.NumWritableNonSigners} {
		if err := encoder.WriteByte(b); err != nil {
			return nil, err
		}
	}

	if err := writeSmallLen(encoder, len(msg.AccountKeys)); err != nil {
		return nil, err
	}
	for _, key := range msg.AccountKeys {
		if err := encoder.WriteBytes(key[:], false); err != nil {
			return nil, err
		}
	}

	if err := writeSmallLen(encoder, len(msg.Instructions)); err != nil {
		return nil, err
	}
	for _, instr := range msg.Instructions {
		if err := encoder.WriteByte(instr.ProgramIDIndex); err != nil {
			return nil, err
		}
		if err := writeSmallBytes(encoder, instr.AccountIndexes); err != nil {
			return nil, err
		}
		if len(instr.Data) > math.MaxUint16 {
			return nil, fmt.Errorf("instruction data of %d bytes does not fit a u16 length", len(instr.Data))
		}
		if err := encoder.WriteUint16(uint16(len(instr.Data)), bin.LE); err != nil {
			return nil, err
		}
		if err := encoder.WriteBytes(instr.Data, false); err != nil {
			return nil, err
		}
	}

	if err := writeSmallLen(encoder, len(msg.AddressTableLookups)); err != nil {
		return nil, err
	}
	for _, lookup := range msg.AddressTableLookups {
		if err := encoder.WriteBytes(lookup.AccountKey[:], false); err != nil {
			return nil, err
		}
		if err := writeSmallBytes(encoder, lookup.WritableIndexes); err != nil {
			return nil, err
		}
		if err := writeSmallBytes(encoder, lookup.ReadonlyIndexes); err != nil {
			return nil, err
		}
	}

	return buffer.Bytes(), nil
}

func UnmarshalCompact(data []byte) (*VaultTransactionMessage, error) {
	decoder := bin.NewBinDecoder(data)
	msg := new(VaultTransactionMessage)

	header, err := decoder.ReadNBytes(3)
	if err != nil {
		return nil, err
	}
	msg.NumSigners, msg.NumWritableSigners, msg.NumWritableNonSigners = header[0], header[1], header[2]

	numKeys, err := decoder.ReadByte()
	if err != nil {
		return nil, err
	}
	msg.AccountKeys = make([]solana.PublicKey, numKeys)
	for i := range msg.AccountKeys {
		msg.AccountKeys[i], err = readPubkey(decoder)
		if err != nil {
			return nil, err
		}
	}

	numInstrs, err := decoder.ReadByte()
	if err != nil {
		return nil, err
	}
	msg.Instructions = make([]CompiledInstruction, numInstrs)
	for i := range msg.Instructions {
		instr := &msg.Instructions[i]
		instr.ProgramIDIndex, err = decoder.ReadByte()
		if err != nil {
			return nil, err
		}
		instr.AccountIndexes, err = readSmallBytes(decoder)
		if err != nil {
			return nil, err
		}
		dataLen, err := decoder.ReadUint16(bin.LE)
		if err != nil {
			return nil, err
		}
		instr.Data, err = decoder.ReadNBytes(int(dataLen))
		if err != nil {
			return nil, err
		}
	}

	numLookups, err := decoder.ReadByte()
	if err != nil {
		return nil, err
	}
	msg.AddressTableLookups = make([]MessageAddressTableLookup, numLookups)
	for i := range msg.AddressTableLookups {
		lookup := &msg.AddressTableLookups[i]
		lookup.AccountKey, err = readPubkey(decoder)
		if err != nil {
			return nil, err
		}
		lookup.WritableIndexes, err = readSmallBytes(decoder)
		if err != nil {
			return nil, err
		}
		lookup.ReadonlyIndexes, err = readSmallBytes(decoder)
		if err != nil {
			return nil, err
		}
	}

	if decoder.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after compact message", decoder.Remaining())
	}

	return msg, nil
}
