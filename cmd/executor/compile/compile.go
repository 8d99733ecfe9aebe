package compile

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.firedancer.io/executor/cmd/executor/inspect"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/compiler"
	"go.firedancer.io/executor/pkg/config"
	"go.firedancer.io/executor/pkg/rpcclient"
	"go.firedancer.io/executor/pkg/vaulttx"
	"k8s.io/klog/v2"
)

var Cmd = cobra.Command{
	Use:   "compile",
	Short: "Compile a batch file into a message",
	Run:   run,
}

var (
	batchPath string
	rpcUrl    string
	format    string
	verbose   bool
)

func init() {
	Cmd.Flags().StringVarP(&batchPath, "batch", "b", "", "Path of the batch YAML file")
	Cmd.Flags().StringVarP(&rpcUrl, "rpc", "r", "", "RPC endpoint for fetching lookup tables")
	Cmd.Flags().StringVarP(&format, "format", "f", "record", "Output encoding: record, message or compact")
	Cmd.Flags().BoolVar(&verbose, "verbose", false, "Print the decoded message to stderr")
}

// TableFetcher returns the RPC table fetcher for endpoint, or nil when no
// endpoint is given.
func TableFetcher(endpoint string) config.TableFetcher {
	if endpoint == "" {
		return nil
	}
	client := rpcclient.NewRpcClient(endpoint)
	return func(ctx context.Context, keys []solana.PublicKey) ([]alt.AddressLookupTableAccount, error) {
		return client.ReadTables(ctx, keys)
	}
}

// CompileBatch loads the batch at path and compiles it.
func CompileBatch(ctx context.Context, path string, fetch config.TableFetcher) (*config.Batch, *vaulttx.VaultTransactionMessage, []alt.AddressLookupTableAccount, error) {
	batch, err := config.LoadBatch(path)
	if err != nil {
		return nil, nil, nil, err
	}

	payer, err := batch.PayerKey()
	if err != nil {
		return nil, nil, nil, err
	}

	instrs, err := batch.BuildInstructions()
	if err != nil {
		return nil, nil, nil, err
	}

	tables, err := batch.Tables(ctx, fetch)
	if err != nil {
		return nil, nil, nil, err
	}

	msg, err := compiler.TryCompile(payer, instrs, tables)
	if err != nil {
		return nil, nil, nil, err
	}

	return batch, msg, tables, nil
}

func Encode(format string, msg *vaulttx.VaultTransactionMessage) ([]byte, error) {
	switch format {
	case "record":
		return vaulttx.MarshalTransaction(&vaulttx.Transaction{Message: *msg})
	case "message":
		return vaulttx.MarshalMessage(msg)
	case "compact":
		return vaulttx.MarshalCompact(msg)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

func run(c *cobra.Command, args []string) {
	if batchPath == "" {
		klog.Exitf("must specify a batch file with --batch")
	}

	_, msg, _, err := CompileBatch(c.Context(), batchPath, TableFetcher(rpcUrl))
	if err != nil {
		klog.Exitf("failed to compile %s: %s", batchPath, err)
	}

	data, err := Encode(format, msg)
	if err != nil {
		klog.Exitf("failed to encode message: %s", err)
	}

	klog.Infof("compiled %d instructions into %d bytes (%d static keys, %d lookups)",
		len(msg.Instructions), len(data), len(msg.AccountKeys), msg.NumLookups())

	if verbose {
		inspect.PrintMessage(os.Stderr, msg)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(data))
}
