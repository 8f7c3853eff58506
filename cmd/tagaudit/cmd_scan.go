package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/yairfalse/tagaudit/internal/auditor"
	"github.com/yairfalse/tagaudit/internal/awsclient"
	"github.com/yairfalse/tagaudit/internal/config"
	"github.com/yairfalse/tagaudit/internal/emitter"
	"github.com/yairfalse/tagaudit/internal/filter"
	"github.com/yairfalse/tagaudit/internal/telemetry"
	"github.com/yairfalse/tagaudit/pkg/resource"
)

// newClients builds the AWS clients for an audit. Tests replace it.
var newClients = func(ctx context.Context, cfg *config.Config, accessKey, secretKey string) (auditor.Clients, error) {
	awsCfg, err := awsclient.Load(ctx,
		awsclient.WithRegion(cfg.AWS.Region),
		awsclient.WithProfile(cfg.AWS.Profile),
		awsclient.WithStaticCredentials(accessKey, secretKey),
		awsclient.WithLogger(log.Logger),
	)
	if err != nil {
		return auditor.Clients{}, err
	}
	return awsclient.NewClients(awsCfg), nil
}

type scanOptions struct {
	accessKey    string
	secretKey    string
	region       string
	profile      string
	resources    []string
	output       string
	untaggedOnly bool
	metricsFile  string
	configPath   string
	otelEndpoint string
	debug        bool
	noColor      bool
}

func newScanCmd() *cobra.Command {
	return (&scanOptions{}).command()
}

// command builds the scan command with its flags bound to o.
func (o *scanOptions) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [resource...]",
		Short: "Audit one region and print every resource with its Name tag",
		Long: `Scan lists the selected resource types in one region and prints each
resource with its Name tag, or N/A when it has none.

Resource selectors: ` + strings.Join(filter.Selectors(), ", ") + `. The ec2 selector covers
both instances and EBS volumes. With no selector every type is scanned.

Credentials come from --aws-access-key/--aws-secret-key when both are set,
otherwise from the default AWS chain (environment, shared config, instance role).`,
		Example: `  tagaudit scan --region us-east-1                      # Audit everything
  tagaudit scan --region eu-west-1 --resources ec2 s3   # Only EC2 and S3
  tagaudit scan --region us-east-1 --untagged-only -o json
  tagaudit scan --config tagaudit.toml`,
		Args: cobra.ArbitraryArgs,
		RunE: o.run,
	}

	o.bindScanFlags(cmd.Flags())
	return cmd
}

// bindScanFlags registers every scan flag, including the report-only ones.
func (o *scanOptions) bindScanFlags(flags *pflag.FlagSet) {
	o.bindFlags(flags)
	flags.StringSliceVar(&o.resources, "resources", nil, "Resource types to audit: "+strings.Join(filter.Selectors(), ", "))
	flags.StringVarP(&o.output, "output", "o", string(emitter.FormatTable), "Output format: "+strings.Join(emitter.Formats(), ", "))
	flags.BoolVar(&o.noColor, "no-color", false, "Disable colored table output")
}

// bindFlags registers the flags scan and watch share.
func (o *scanOptions) bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.accessKey, "aws-access-key", "", "AWS access key ID")
	flags.StringVar(&o.secretKey, "aws-secret-key", "", "AWS secret access key")
	flags.StringVarP(&o.region, "region", "r", "", "AWS region to audit (required)")
	flags.StringVar(&o.profile, "profile", "", "Shared config profile")
	flags.BoolVar(&o.untaggedOnly, "untagged-only", false, "Only report resources with no tags at all")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	flags.StringVarP(&o.configPath, "config", "c", "", "Path to TOML config file")
	flags.StringVar(&o.otelEndpoint, "otel-endpoint", "", "OTLP gRPC endpoint for traces and metrics")
	flags.BoolVar(&o.debug, "debug", false, "Enable debug logging")
}

// resolveConfig merges explicit flags over the config file over defaults.
// Positional arguments are extra resource selectors.
func (o *scanOptions) resolveConfig(flags *pflag.FlagSet, args []string) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Changed("region") {
		cfg.AWS.Region = o.region
	}
	if flags.Changed("profile") {
		cfg.AWS.Profile = o.profile
	}
	if flags.Changed("resources") || len(args) > 0 {
		var selectors []string
		if flags.Changed("resources") {
			selectors = append(selectors, o.resources...)
		}
		cfg.AWS.Resources = append(selectors, args...)
	}
	if flags.Changed("output") {
		cfg.Output.Format = o.output
	}
	if flags.Changed("untagged-only") {
		cfg.Output.UntaggedOnly = o.untaggedOnly
	}
	if flags.Changed("metrics-file") {
		cfg.Output.MetricsFile = o.metricsFile
	}
	if flags.Changed("otel-endpoint") {
		cfg.OTEL.Endpoint = o.otelEndpoint
		cfg.OTEL.Traces.Enabled = true
		cfg.OTEL.Metrics.Enabled = true
		if cfg.OTEL.Traces.SampleRate == 0 {
			cfg.OTEL.Traces.SampleRate = 1.0
		}
	}
	if o.debug {
		cfg.Log.Level = zerolog.DebugLevel.String()
	}

	if cfg.AWS.Region == "" {
		return nil, errors.New(`required flag "region" not set`)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *scanOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := o.resolveConfig(cmd.Flags(), args)
	if err != nil {
		return err
	}

	s, err := o.open(cmd, cfg, emitter.NewConsoleEmitter(cmd.OutOrStdout(), mustFormat(cfg)))
	if err != nil {
		return err
	}
	defer s.close()

	return s.audit(s.ctx)
}

// session holds everything one or more audits share.
type session struct {
	ctx     context.Context
	cfg     *config.Config
	tel     *telemetry.Provider
	auditor *auditor.Auditor
	emit    emitter.Emitter
}

// open prepares logging, telemetry, clients and emitters. console may be nil.
func (o *scanOptions) open(cmd *cobra.Command, cfg *config.Config, console emitter.Emitter) (*session, error) {
	level, _ := cfg.LogLevel()
	setupLogging(cmd.ErrOrStderr(), level)
	if plainOutput(o.noColor, cmd.OutOrStdout()) {
		pterm.DisableStyling()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tel, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s := &session{ctx: ctx, cfg: cfg, tel: tel}

	emitters := []emitter.Emitter{console}
	if cfg.Output.MetricsFile != "" {
		textfile, err := emitter.NewTextfileEmitter(cfg.Output.MetricsFile)
		if err != nil {
			s.close()
			return nil, err
		}
		emitters = append(emitters, textfile)
	}
	s.emit = emitter.NewMultiEmitter(emitters...)

	clients, err := newClients(ctx, cfg, o.accessKey, o.secretKey)
	if err != nil {
		s.close()
		return nil, err
	}

	s.auditor, err = auditor.New(clients, auditor.Options{
		Region:       cfg.AWS.Region,
		UntaggedOnly: cfg.Output.UntaggedOnly,
		Tracer:       tel.Tracer(),
		Metrics:      tel,
	})
	if err != nil {
		s.close()
		return nil, err
	}

	return s, nil
}

// audit runs one audit and hands the result to every emitter. The audit
// error wins over an emit error.
func (s *session) audit(ctx context.Context) error {
	log.Info().
		Str("region", s.cfg.AWS.Region).
		Strs("resources", s.cfg.AWS.Resources).
		Bool("untagged_only", s.cfg.Output.UntaggedOnly).
		Msg("starting audit")

	start := time.Now()
	report, scanErr := s.auditor.Scan(ctx, s.cfg.AWS.Resources)
	result := resource.ScanResult{Report: report, Duration: time.Since(start), Error: scanErr}
	if scanErr != nil {
		result.Report.Region = s.cfg.AWS.Region
	}

	if err := s.emit.Emit(ctx, result); err != nil {
		if scanErr != nil {
			log.Error().Err(err).Msg("emit failed")
			return scanErr
		}
		return err
	}
	if scanErr != nil {
		return scanErr
	}

	log.Info().
		Str("account", report.Account).
		Int("resources", len(report.Records)).
		Int("untagged", len(report.Untagged())).
		Dur("duration", result.Duration).
		Msg("audit complete")
	return nil
}

func (s *session) close() {
	if s.emit != nil {
		if err := s.emit.Close(); err != nil {
			log.Warn().Err(err).Msg("emitter close failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

// plainOutput reports whether table styling must be off: on request, or
// when the report does not go to a terminal.
func plainOutput(noColor bool, w io.Writer) bool {
	if noColor {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !term.IsTerminal(int(f.Fd()))
}

// mustFormat returns the validated output format.
func mustFormat(cfg *config.Config) emitter.Format {
	f, _ := emitter.ParseFormat(cfg.Output.Format)
	return f
}
