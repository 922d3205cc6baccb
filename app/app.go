// Package app wires configuration into the registry, uploader and servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moyoez/kbupload/api"
	"github.com/moyoez/kbupload/api/models"
	"github.com/moyoez/kbupload/api/notifyhub"
	"github.com/moyoez/kbupload/ingest"
	"github.com/moyoez/kbupload/notify"
	"github.com/moyoez/kbupload/preview"
	"github.com/moyoez/kbupload/selection"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/transfer"
	"github.com/moyoez/kbupload/types"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg types.AppConfig

	Previews *preview.Store
	Registry *selection.Registry
	Uploader *transfer.Uploader
	Hub      *notifyhub.Hub
	Results  *models.ResultStore
}

// New builds every component from cfg. Nothing listens until Serve or Ingest.
func New(cfg types.AppConfig) (*App, error) {
	a := &App{
		cfg:      cfg,
		Previews: preview.NewStore(fmt.Sprintf("http://127.0.0.1:%d/api/self/v1/preview", cfg.ControlPort)),
		Hub:      notifyhub.New(),
		Results:  models.NewResultStore(),
	}
	a.Registry = selection.NewRegistry(func(p selection.Payload) selection.PreviewHandle {
		return a.Previews.Acquire(p)
	})

	notifier := notify.NewMulti(notify.LogNotifier{}, a.Hub)
	if cfg.UseNotify {
		notifier.Add(notify.SocketNotifier{SocketPath: cfg.NotifySocket})
	}

	tool.InitHTTPClients(cfg.RequestTimeout)
	uploader, err := transfer.NewUploader(a.Registry, cfg.BaseURL,
		transfer.WithHTTPClient(tool.GetHttpClient()),
		transfer.WithNotifier(notifier),
		transfer.WithPurgeDelay(cfg.PurgeDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create uploader: %w", err)
	}
	a.Uploader = uploader
	return a, nil
}

type server interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Serve runs the control API, and the reference endpoint when withIngest is set,
// until ctx is done.
func (a *App) Serve(ctx context.Context, withIngest bool) error {
	servers := []server{
		api.NewServer("127.0.0.1", a.cfg.ControlPort, api.Deps{
			Batch:    a.Registry,
			Uploader: a.Uploader,
			Previews: a.Previews,
			Results:  a.Results,
			Hub:      a.Hub,
			Accepted: a.cfg.AcceptedExtensions,
		}),
	}
	if withIngest {
		receiver, err := a.newIngest()
		if err != nil {
			return err
		}
		servers = append(servers, receiver)
	}
	return run(ctx, servers...)
}

// Ingest runs only the reference endpoint.
func (a *App) Ingest(ctx context.Context) error {
	receiver, err := a.newIngest()
	if err != nil {
		return err
	}
	return run(ctx, receiver)
}

func (a *App) newIngest() (*ingest.Server, error) {
	return ingest.NewServer(a.cfg.IngestPort, a.cfg.IngestDir,
		ingest.WithAcceptedExtensions(a.cfg.AcceptedExtensions))
}

// UploadFiles selects sources (paths or file:// URLs) and submits them as one batch.
// Sources that cannot be read are skipped and returned alongside the report.
func (a *App) UploadFiles(ctx context.Context, sources []string) (types.Report, []types.UserSkippedFile) {
	var skipped []types.UserSkippedFile
	payloads := make([]selection.Payload, 0, len(sources))
	for _, source := range sources {
		file, err := tool.OpenLocalFile(source)
		if err != nil {
			tool.DefaultLogger.Warnf("[Registry] Skipping %s: %v", source, err)
			skipped = append(skipped, types.UserSkippedFile{Source: source, Error: err.Error()})
			continue
		}
		if !tool.IsAcceptedExtension(file.Name(), a.cfg.AcceptedExtensions) {
			tool.DefaultLogger.Warnf("[Registry] %s is outside the accepted types (%s)", file.Name(), tool.AcceptAttribute(a.cfg.AcceptedExtensions))
		}
		payloads = append(payloads, file)
	}
	if _, err := a.Registry.AddFiles(payloads...); err != nil {
		tool.DefaultLogger.Warnf("[Registry] %v", err)
	}
	report := a.Uploader.Submit(ctx)
	a.Results.Save(report)
	return report, skipped
}

func run(ctx context.Context, servers ...server) error {
	erg, ctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		erg.Go(s.Start)
	}
	erg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	if err := erg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		tool.DefaultLogger.Errorf("[Server] Stopped with error: %v", err)
		return err
	}
	tool.DefaultLogger.Infof("[Server] Stopped gracefully")
	return nil
}
