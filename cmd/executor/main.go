package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.firedancer.io/executor/cmd/executor/compile"
	"go.firedancer.io/executor/cmd/executor/inspect"
	"go.firedancer.io/executor/cmd/executor/simulate"
	"k8s.io/klog/v2"
)

var cmd = cobra.Command{
	Use:   "executor",
	Short: "Compile, inspect and simulate deferred transaction batches",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		&compile.Cmd,
		&inspect.Cmd,
		&simulate.Cmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}
