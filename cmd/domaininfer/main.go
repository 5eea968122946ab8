package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	_ "github.com/tensorfuzz/domaininfer/pkg/executor/native"
)

func main() {
	ctx := context.Background()

	klog.InitFlags(nil)

	rootCmd := &cobra.Command{
		Use:           "domaininfer",
		Short:         "Infer and consume NaN-safe input domains for DNN models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(
		newInferCommand(),
		newSampleCommand(),
		newShowCommand(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
