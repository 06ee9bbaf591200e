package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/roach88/tensorgen/internal/cli"
)

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	defer klog.Flush()

	root := cli.NewRootCommand()

	// klog's -v collides with --verbose/-v, so it is exposed as --log-v.
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	klogFlags.VisitAll(func(f *flag.Flag) {
		pf := pflag.PFlagFromGoFlag(f)
		if pf.Name == "v" {
			pf.Name = "log-v"
			pf.Shorthand = ""
		}
		root.PersistentFlags().AddFlag(pf)
	})

	ctx = klog.NewContext(ctx, klog.Background())

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
