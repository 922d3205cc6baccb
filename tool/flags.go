package tool

import (
	"github.com/moyoez/kbupload/types"
	"github.com/urfave/cli/v3"
)

// GlobalFlags are accepted by every command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Load configuration from `FILE` (created with defaults if missing)",
			Value:   ConfigPath,
		},
		&cli.StringFlag{
			Name:  "log",
			Usage: "log mode: dev|prod|none",
		},
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "override the ingestion endpoint base URL",
		},
		&cli.BoolFlag{
			Name:  "use-notify",
			Usage: "also send notifications to the unix socket",
		},
	}
}

// ServeFlags are the flags of the serve command.
func ServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "control-port",
			Usage: "override the control API port",
		},
		&cli.BoolFlag{
			Name:  "with-ingest",
			Usage: "also run the reference ingestion endpoint",
		},
		&cli.IntFlag{
			Name:  "ingest-port",
			Usage: "override the ingestion endpoint port",
		},
		&cli.StringFlag{
			Name:  "ingest-dir",
			Usage: "override the directory received files are written to",
		},
	}
}

// IngestFlags are the flags of the ingest command.
func IngestFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "ingest-port",
			Usage: "override the ingestion endpoint port",
		},
		&cli.StringFlag{
			Name:  "ingest-dir",
			Usage: "override the directory received files are written to",
		},
	}
}

// FlagsFromCommand collects the overrides set on cmd and its parents.
// Flags a command does not define read as zero values.
func FlagsFromCommand(cmd *cli.Command) types.Config {
	return types.Config{
		Log:            cmd.String("log"),
		UseConfigPath:  cmd.String("config"),
		UseBaseURL:     cmd.String("base-url"),
		UseNotify:      cmd.Bool("use-notify"),
		UseControlPort: cmd.Int("control-port"),
		UseIngestPort:  cmd.Int("ingest-port"),
		UseIngestDir:   cmd.String("ingest-dir"),
		WithIngest:     cmd.Bool("with-ingest"),
	}
}
