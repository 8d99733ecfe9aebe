package vaulttx

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	sha256 "github.com/minio/sha256-simd"
)

var ErrAccountDiscriminatorMismatch = errors.New("ErrAccountDiscriminatorMismatch")

// TransactionDiscriminator prefixes every stored transaction record.
var TransactionDiscriminator = accountDiscriminator("Transaction")

func accountDiscriminator(name string) [8]byte {
	var out [8]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(out[:], sum[:8])
	return out
}

// Transaction is the body of a stored transaction record.
type Transaction struct {
	Message VaultTransactionMessage
}

func readLen(decoder *bin.Decoder, elemSize int) (int, error) {
	n, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(elemSize) > uint64(decoder.Remaining()) {
		return 0, io.ErrUnexpectedEOF
	}
	return int(n), nil
}

func readByteVec(decoder *bin.Decoder) ([]byte, error) {
	n, err := readLen(decoder, 1)
	if err != nil {
		return nil, err
	}
	return decoder.ReadNBytes(n)
}

func writeByteVec(encoder *bin.Encoder, b []byte) error {
	err := encoder.WriteUint32(uint32(len(b)), bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(b, false)
}

func readPubkey(decoder *bin.Decoder) (solana.PublicKey, error) {
	pkBytes, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(pkBytes), nil
}

func (instr *CompiledInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error

	instr.ProgramIDIndex, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	instr.AccountIndexes, err = readByteVec(decoder)
	if err != nil {
		return err
	}

	instr.Data, err = readByteVec(decoder)
	return err
}

func (instr *CompiledInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(instr.ProgramIDIndex)
	if err != nil {
		return err
	}

	err = writeByteVec(encoder, instr.AccountIndexes)
	if err != nil {
		return err
	}

	return writeByteVec(encoder, instr.Data)
}

func (lookup *MessageAddressTableLookup) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error

	lookup.AccountKey, err = readPubkey(decoder)
	if err != nil {
		return err
	}

	lookup.WritableIndexes, err = readByteVec(decoder)
	if err != nil {
		return err
	}

	lookup.ReadonlyIndexes, err = readByteVec(decoder)
	return err
}

func (lookup *MessageAddressTableLookup) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(lookup.AccountKey[:], false)
	if err != nil {
		return err
	}

	err = writeByteVec(encoder, lookup.WritableIndexes)
	if err != nil {
		return err
	}

	return writeByteVec(encoder, lookup.ReadonlyIndexes)
}

func (msg *VaultTransactionMessage) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error

	msg.NumSigners, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	msg.NumWritableSigners, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	msg.NumWritableNonSigners, err = decoder.ReadByte()
	if err != nil {
		return err
	}

	numKeys, err := readLen(decoder, solana.PublicKeyLength)
	if err != nil {
		return err
	}
	msg.AccountKeys = make([]solana.PublicKey, numKeys)
	for i := range msg.AccountKeys {
		msg.AccountKeys[i], err = readPubkey(decoder)
		if err != nil {
			return err
		}
	}

	// smallest instruction: program index plus two empty vectors
	numInstrs, err := readLen(decoder, 9)
	if err != nil {
		return err
	}
	msg.Instructions = make([]CompiledInstruction, numInstrs)
	for i := range msg.Instructions {
		err = msg.Instructions[i].UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
	}

	numLookups, err := readLen(decoder, solana.PublicKeyLength+8)
	if err != nil {
		return err
	}
	msg.AddressTableLookups = make([]MessageAddressTableLookup, numLookups)
	for i := range msg.AddressTableLookups {
		err = msg.AddressTableLookups[i].UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
	}

	return nil
}

func (msg *VaultTransactionMessage) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteByte(msg.NumSigners)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(msg.NumWritableSigners)
	if err != nil {
		return err
	}

	err = encoder.WriteByte(msg.NumWritableNonSigners)
	if err != nil {
		return err
	}

	err = encoder.WriteUint32(uint32(len(msg.AccountKeys)), bin.LE)
	if err != nil {
		return err
	}
	for _, key := range msg.AccountKeys {
		err = encoder.WriteBytes(key[:], false)
		if err != nil {
			return err
		}
	}

	err = encoder.WriteUint32(uint32(len(msg.Instructions)), bin.LE)
	if err != nil {
		return err
	}
	for i := range msg.Instructions {
		err = msg.Instructions[i].MarshalWithEncoder(encoder)
		if err != nil {
			return err
		}
	}

	err = encoder.WriteUint32(uint32(len(msg.AddressTableLookups)), bin.LE)
	if err != nil {
		return err
	}
	for i := range msg.AddressTableLookups {
		err = msg.AddressTableLookups[i].MarshalWithEncoder(encoder)
		if err != nil {
			return err
		}
	}

	return nil
}

func MarshalMessage(msg *VaultTransactionMessage) ([]byte, error) {
	buffer := new(bytes.Buffer)
	err := msg.MarshalWithEncoder(bin.NewBinEncoder(buffer))
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func UnmarshalMessage(data []byte) (*VaultTransactionMessage, error) {
	msg := new(VaultTransactionMessage)
	err := msg.UnmarshalWithDecoder(bin.NewBinDecoder(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return msg, nil
}

// MarshalTransaction encodes a record body, discriminator first.
func MarshalTransaction(tx *Transaction) ([]byte, error) {
	buffer := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buffer)

	err := encoder.WriteBytes(TransactionDiscriminator[:], false)
	if err != nil {
		return nil, err
	}

	err = tx.Message.MarshalWithEncoder(encoder)
	if err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// UnmarshalTransaction decodes a record body. Bytes past the encoded
// message are allocation padding and are ignored.
func UnmarshalTransaction(data []byte) (*Transaction, error) {
	if len(data) < len(TransactionDiscriminator) || !bytes.Equal(data[:len(TransactionDiscriminator)], TransactionDiscriminator[:]) {
		return nil, ErrAccountDiscriminatorMismatch
	}

	tx := new(Transaction)
	err := tx.Message.UnmarshalWithDecoder(bin.NewBinDecoder(data[len(TransactionDiscriminator):]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction record: %w", err)
	}
	return tx, nil
}
