package inspect

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/textio"
	"github.com/spf13/cobra"
	"go.firedancer.io/executor/pkg/vaulttx"
	"k8s.io/klog/v2"
)

var Cmd = cobra.Command{
	Use:   "inspect <base64>",
	Short: "Decode and print a compiled message",
	Args:  cobra.MaximumNArgs(1),
	Run:   run,
}

var (
	format string
	file   string
)

func init() {
	Cmd.Flags().StringVarP(&format, "format", "f", "record", "Encoding of the input: record, message or compact")
	Cmd.Flags().StringVar(&file, "file", "", "Read the base64 input from a file instead of the argument")
}

func run(c *cobra.Command, args []string) {
	var encoded string
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			klog.Exitf("failed to read %s: %s", file, err)
		}
		encoded = string(data)
	case len(args) == 1:
		encoded = args[0]
	default:
		klog.Exitf("need a base64 argument or --file")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		klog.Exitf("input is not base64: %s", err)
	}

	msg, err := Decode(format, data)
	if err != nil {
		klog.Exitf("failed to decode %s: %s", format, err)
	}

	PrintMessage(os.Stdout, msg)
}

// Decode reads a message in one of the encodings the compile command emits.
func Decode(format string, data []byte) (*vaulttx.VaultTransactionMessage, error) {
	switch format {
	case "record":
		tx, err := vaulttx.UnmarshalTransaction(data)
		if err != nil {
			return nil, err
		}
		return &tx.Message, nil
	case "message":
		return vaulttx.UnmarshalMessage(data)
	case "compact":
		return vaulttx.UnmarshalCompact(data)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// PrintMessage writes a human readable dump of msg to w.
func PrintMessage(w io.Writer, msg *vaulttx.VaultTransactionMessage) {
	hash, err := msg.Hash()
	if err == nil {
		fmt.Fprintf(w, "Message %x\n", hash)
	}
	fmt.Fprintf(w, "Header: %d signers (%d writable), %d writable non-signers\n",
		msg.NumSigners, msg.NumWritableSigners, msg.NumWritableNonSigners)

	fmt.Fprintf(w, "Account keys (%d static, %d total):\n", len(msg.AccountKeys), msg.NumAllAccountKeys())
	keys := textio.NewPrefixWriter(w, "  ")
	for i, key := range msg.AccountKeys {
		fmt.Fprintf(keys, "[%d] %s%s\n", i, key, privileges(msg.IsSignerIndex(i), msg.IsWritableIndex(i)))
	}
	keys.Flush()

	fmt.Fprintf(w, "Address table lookups (%d):\n", len(msg.AddressTableLookups))
	lookups := textio.NewPrefixWriter(w, "  ")
	for _, lookup := range msg.AddressTableLookups {
		fmt.Fprintf(lookups, "%s writable=%v readonly=%v\n", lookup.AccountKey, lookup.WritableIndexes, lookup.ReadonlyIndexes)
	}
	lookups.Flush()

	fmt.Fprintf(w, "Instructions (%d):\n", len(msg.Instructions))
	instrs := textio.NewPrefixWriter(w, "  ")
	for i, instr := range msg.Instructions {
		fmt.Fprintf(instrs, "#%d program=[%d] accounts=%v data=%x\n", i, instr.ProgramIDIndex, instr.AccountIndexes, instr.Data)
	}
	instrs.Flush()
}

func privileges(signer, writable bool) string {
	var flags []string
	if signer {
		flags = append(flags, "signer")
	}
	if writable {
		flags = append(flags, "writable")
	}
	if len(flags) == 0 {
		return ""
	}
	return " (" + strings.Join(flags, ", ") + ")"
}
