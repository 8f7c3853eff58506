package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = newRootCmd()
)

// newRootCmd builds the root command. Without a subcommand it runs scan, so
// "tagaudit --region us-east-1 --resources ec2 s3" works as a one-shot audit.
func newRootCmd() *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "tagaudit [resource...]",
		Short: "Find AWS resources missing tags",
		Long: `tagaudit lists EC2 instances, EBS volumes, S3 buckets, RDS instances and
Lambda functions in one region and reports each with its Name tag.

Resources without a Name tag are shown as N/A. Run without a subcommand it
behaves like "tagaudit scan".`,
		Args:          cobra.ArbitraryArgs,
		RunE:          o.run,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.bindScanFlags(cmd.Flags())
	cmd.SetVersionTemplate("tagaudit {{.Version}}\n")
	cmd.AddCommand(newScanCmd(), newWatchCmd(), newVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
