package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/moyoez/kbupload/app"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd().Run(ctx, os.Args); err != nil {
		tool.DefaultLogger.Errorf("%v", err)
		os.Exit(1)
	}
}

func cmd() *cli.Command {
	return &cli.Command{
		Name:    "kbupload",
		Usage:   "Select files and upload them to a knowledge base in one batch",
		Version: version,
		Flags:   tool.GlobalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the local control API",
				Flags: tool.ServeFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					flags, a, err := setup(cmd)
					if err != nil {
						return err
					}
					return a.Serve(ctx, flags.WithIngest)
				},
			},
			{
				Name:      "upload",
				Usage:     "Upload files once and print the report",
				ArgsUsage: "<path|file:///url>...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() == 0 {
						return errors.New("upload needs at least one path")
					}
					_, a, err := setup(cmd)
					if err != nil {
						return err
					}
					return runUpload(ctx, a, cmd.Args().Slice())
				},
			},
			{
				Name:  "ingest",
				Usage: "Run the reference ingestion endpoint",
				Flags: tool.IngestFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					_, a, err := setup(cmd)
					if err != nil {
						return err
					}
					return a.Ingest(ctx)
				},
			},
		},
	}
}

// setup loads the config file, lets flags win over it and builds the app.
func setup(cmd *cli.Command) (types.Config, *app.App, error) {
	flags := tool.FlagsFromCommand(cmd)

	tool.InitLogger()
	tool.SetLogMode(flags.Log)

	appCfg, err := tool.LoadConfig(flags.UseConfigPath)
	if err != nil {
		return flags, nil, err
	}
	tool.ApplyFlagOverrides(&appCfg, flags)

	a, err := app.New(appCfg)
	if err != nil {
		return flags, nil, err
	}
	return flags, a, nil
}

func runUpload(ctx context.Context, a *app.App, sources []string) error {
	report, skipped := a.UploadFiles(ctx, sources)
	for _, s := range skipped {
		fmt.Fprintf(os.Stderr, "skipped %s: %s\n", s.Source, s.Error)
	}

	out, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	fmt.Println(string(out))

	switch report.Outcome {
	case types.OutcomeFailed:
		if report.Failure == types.FailureTransport {
			diagnoseHost(a.Uploader.BaseURL())
		}
		return errors.New(report.Message)
	case types.OutcomeNoop:
		return fmt.Errorf("nothing uploaded: %s", report.NoopReason)
	}
	return nil
}

// diagnoseHost tells a down host apart from a closed port.
func diagnoseHost(baseURL string) {
	host, err := tool.HostOf(baseURL)
	if err != nil {
		return
	}
	rtt, err := tool.ProbeHost(host)
	if err != nil {
		tool.DefaultLogger.Warnf("[Upload] %s does not answer ping either: %v", host, err)
		return
	}
	tool.DefaultLogger.Warnf("[Upload] %s answers ping in %s; the ingestion service itself is not listening", host, rtt)
}
