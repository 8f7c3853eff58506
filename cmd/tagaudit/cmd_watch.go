package main

import (
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/tagaudit/internal/config"
	"github.com/yairfalse/tagaudit/internal/daemon"
	"github.com/yairfalse/tagaudit/internal/filter"
)

type watchOptions struct {
	scanOptions
	interval string
}

func newWatchCmd() *cobra.Command {
	return (&watchOptions{}).command()
}

// command builds the watch command with its flags bound to o.
func (o *watchOptions) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [resource...]",
		Short: "Re-audit on an interval and keep a Prometheus textfile current",
		Long: `Watch runs the same audit as scan immediately and then once per interval,
rewriting the --metrics-file after every cycle for the node_exporter textfile
collector. A failed cycle is logged and the next one runs as scheduled.

Resource selectors: ` + strings.Join(filter.Selectors(), ", ") + `.

Stop with SIGINT or SIGTERM.`,
		Example: `  tagaudit watch --region us-east-1 --metrics-file /var/lib/node_exporter/tagaudit.prom
  tagaudit watch --region eu-west-1 --interval 15m --metrics-file tagaudit.prom ec2 s3`,
		Args: cobra.ArbitraryArgs,
		RunE: o.run,
	}

	o.bindFlags(cmd.Flags())
	cmd.Flags().StringSliceVar(&o.resources, "resources", nil, "Resource types to audit: "+strings.Join(filter.Selectors(), ", "))
	cmd.Flags().StringVar(&o.interval, "interval", "", "Time between audits (default from config, else 1h)")

	return cmd
}

func (o *watchOptions) resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := o.scanOptions.resolveConfig(cmd.Flags(), args)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("interval") {
		if err := cfg.SetInterval(o.interval); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Output.MetricsFile == "" {
		return nil, errors.New("watch requires --metrics-file or output.metrics_file")
	}
	return cfg, nil
}

func (o *watchOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	s, err := o.open(cmd, cfg, nil)
	if err != nil {
		return err
	}
	defer s.close()

	d, err := daemon.New(daemon.Config{Interval: cfg.Watch.Interval}, s.audit)
	if err != nil {
		return err
	}

	log.Info().
		Str("region", cfg.AWS.Region).
		Dur("interval", cfg.Watch.Interval).
		Str("metrics_file", cfg.Output.MetricsFile).
		Msg("watching")

	if err := d.Run(s.ctx); err != nil {
		return err
	}

	h := d.Health()
	log.Info().Int64("runs", h.Runs).Int64("failures", h.Failures).Msg("watch stopped")
	return nil
}
