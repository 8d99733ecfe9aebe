package simulate

import (
	"context"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.firedancer.io/executor/cmd/executor/compile"
	"go.firedancer.io/executor/cmd/executor/inspect"
	"go.firedancer.io/executor/pkg/accounts"
	"go.firedancer.io/executor/pkg/alt"
	"go.firedancer.io/executor/pkg/config"
	"go.firedancer.io/executor/pkg/executor"
	"go.firedancer.io/executor/pkg/program"
	"go.firedancer.io/executor/pkg/sealevel"
	"k8s.io/klog/v2"
)

var Cmd = cobra.Command{
	Use:   "simulate",
	Short: "Store and execute a batch against a local ledger",
	Run:   run,
}

var (
	batchPath string
	rpcUrl    string
	db        string
	dbDir     string
)

const defaultSpace = 4096

func init() {
	Cmd.Flags().StringVarP(&batchPath, "batch", "b", "", "Path of the batch YAML file")
	Cmd.Flags().StringVarP(&rpcUrl, "rpc", "r", "", "RPC endpoint for fetching lookup tables")
	Cmd.Flags().StringVar(&db, "db", "memory", "Ledger store: memory, pebble or lotus")
	Cmd.Flags().StringVar(&dbDir, "dir", "", "Directory of the on-disk ledger store")
}

type closer interface {
	Close() error
}

func openLedger(kind string, dir string) (accounts.Accounts, error) {
	switch kind {
	case "memory":
		return accounts.NewMemAccounts(), nil
	case "pebble", "lotus":
		if dir == "" {
			return nil, fmt.Errorf("--dir is required for the %s store", kind)
		}
		if kind == "pebble" {
			return accounts.OpenPebbleAccountsDb(dir)
		}
		return accounts.OpenPersistentAccountsDb(dir)
	}
	return nil, fmt.Errorf("unknown store %q", kind)
}

func run(c *cobra.Command, args []string) {
	if batchPath == "" {
		klog.Exitf("must specify a batch file with --batch")
	}

	ledger, err := openLedger(db, dbDir)
	if err != nil {
		klog.Exitf("failed to open ledger: %s", err)
	}
	if cl, ok := ledger.(closer); ok {
		defer cl.Close()
	}

	err = Simulate(c.Context(), ledger, batchPath, compile.TableFetcher(rpcUrl))
	if err != nil {
		klog.Errorf("simulation failed: %s", err)
	}
}

// Simulate loads the batch's starting ledger and lookup tables into
// ledger, stores the compiled message and executes it twice.
func Simulate(ctx context.Context, ledger accounts.Accounts, path string, fetch config.TableFetcher) error {
	batch, msg, tables, err := compile.CompileBatch(ctx, path, fetch)
	if err != nil {
		return err
	}

	startAccts, err := batch.LedgerAccounts()
	if err != nil {
		return err
	}
	for i := range startAccts {
		if err = ledger.SetAccount(startAccts[i].Key, &startAccts[i]); err != nil {
			return err
		}
	}

	payer, err := batch.PayerKey()
	if err != nil {
		return err
	}

	for _, table := range tables {
		state := alt.NewAddressLookupTable(&payer)
		if err = state.Extend(0, table.Addresses); err != nil {
			return fmt.Errorf("lookup table %s: %w", table.Key, err)
		}
		if err = alt.WriteTable(ledger, table.Key, state); err != nil {
			return err
		}
	}

	inspect.PrintMessage(os.Stdout, msg)

	space := batch.Space
	if space == 0 {
		space = defaultSpace
	}

	invoked := 0
	newInvoker := func(callers []sealevel.AccountMeta) executor.Invoker {
		execCtx := sealevel.NewExecutionCtx(ledger, callers, sealevel.DefaultComputeUnitLimit)
		return &tracingInvoker{execCtx: execCtx, invoked: &invoked}
	}
	prog := program.New(ledger, newInvoker, program.NewMetrics(prometheus.NewRegistry()))

	txKey := solana.NewWallet().PublicKey()
	initInstr, err := program.NewInitializeTransactionInstruction(payer, txKey, space, msg)
	if err != nil {
		return err
	}
	if err = prog.Process(ctx, initInstr.Data, initInstr.Accounts); err != nil {
		return fmt.Errorf("initializing transaction: %w", err)
	}

	remaining, err := program.RemainingAccounts(msg, tables)
	if err != nil {
		return err
	}
	execInstr := program.NewExecuteInstruction(txKey, remaining)

	for attempt := 1; attempt <= 2; attempt++ {
		before := invoked
		err = prog.Process(ctx, execInstr.Data, execInstr.Accounts)
		fmt.Printf("Execution %d: %d invocations, result %s\n", attempt, invoked-before, resultString(err))
		if err != nil {
			return err
		}
	}

	printBalances(ledger, batch)
	return nil
}

func resultString(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}

// tracingInvoker prints the program log of every invocation.
type tracingInvoker struct {
	execCtx *sealevel.ExecutionCtx
	invoked *int
}

func (t *tracingInvoker) Invoke(ctx context.Context, req executor.InvokeRequest) error {
	*t.invoked++
	logs := t.execCtx.Log.(*sealevel.LogRecorder)
	start := len(logs.Logs)

	err := t.execCtx.Invoke(ctx, req)

	for _, line := range logs.Logs[start:] {
		fmt.Printf("  %s\n", line)
	}
	return err
}

func printBalances(ledger accounts.Accounts, batch *config.Batch) {
	fmt.Println("Post balances:")
	for _, entry := range batch.Ledger {
		key, err := config.ParsePubkey(entry.Pubkey)
		if err != nil {
			continue
		}
		var lamports uint64
		if acct, err := ledger.GetAccount(key); err == nil {
			lamports = acct.Lamports
		}
		fmt.Printf("  %s %d -> %d\n", key, entry.Lamports, lamports)
	}
}
