package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"marksweep/internal/bookmarkfile"
	"marksweep/internal/config"
	"marksweep/internal/diagnostics"
	"marksweep/internal/models"
	"marksweep/internal/probe"
	"marksweep/internal/retry"
	"marksweep/internal/services"
	"marksweep/internal/store"
	"marksweep/internal/store/primary"
	"marksweep/internal/store/sqlite"
	"marksweep/pkg/categorizer"
)

// App wires the store, the pipeline components and the job client together.
// Every surface (CLI, HTTP, MCP, worker) goes through it.
type App struct {
	Config      *config.Config
	Store       store.Store
	JobClient   store.JobClient
	Diagnostics *diagnostics.Log
	Executor    *retry.Executor

	Prober      *probe.Prober
	Classifier  *categorizer.LLMClassifier
	Categorizer *categorizer.Chain

	ScanService     *services.ScanService
	OrganizeService *services.OrganizeService
}

// Option customizes NewAppWithStore.
type Option func(*options)

type options struct {
	httpClient probe.HTTPDoer
	llmOpts    []categorizer.LLMOption
}

// WithHTTPClient replaces the client used by the accessibility probe.
func WithHTTPClient(c probe.HTTPDoer) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClassifierOptions passes options through to the external classifier.
func WithClassifierOptions(opts ...categorizer.LLMOption) Option {
	return func(o *options) { o.llmOpts = append(o.llmOpts, opts...) }
}

// NewApp opens the configured store and job client and builds the pipeline.
func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	prompt, err := config.LoadPromptContent(cfg.Classifier.PromptTemplate)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load classifier prompt: %w", err)
	}

	app := NewAppWithStore(cfg, st, WithClassifierOptions(categorizer.WithPromptTemplate(prompt)))
	if err := app.initJobClient(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// NewAppWithStore builds the pipeline on an already opened store.
func NewAppWithStore(cfg *config.Config, st store.Store, opts ...Option) *App {
	o := options{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}

	diag := diagnostics.NewLog(cfg.Diagnostics.Capacity)
	diag.SetSink(st)
	exec := retry.NewExecutor(cfg.RetryPolicy(), diag)

	prober := probe.New(o.httpClient, exec)
	classifier := categorizer.NewLLMClassifier(exec, diag, o.llmOpts...)
	chain := categorizer.NewChain(classifier.Stage(), categorizer.DomainStage)

	return &App{
		Config:          cfg,
		Store:           st,
		Diagnostics:     diag,
		Executor:        exec,
		Prober:          prober,
		Classifier:      classifier,
		Categorizer:     chain,
		ScanService:     services.NewScanService(prober, chain, diag, cfg.ScanOptions()),
		OrganizeService: services.NewOrganizeService(st, exec, diag, cfg.OrganizeOptions()),
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := primary.NewPrimaryStore(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres store: %w", err)
		}
		return st, nil
	case "sqlite", "":
		st, err := sqlite.NewSQLiteStore(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (a *App) initJobClient() error {
	jc, err := store.NewAsynqJobClient(a.RedisOpt(), a.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

// RedisOpt is the asynq connection used by the job client and the worker.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

// Close releases the job client and the store.
func (a *App) Close() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Warnf("Failed to close job client: %v", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Warnf("Failed to close store: %v", err)
		}
	}
}

// Settings returns the settings snapshot for one run.
func (a *App) Settings() models.Settings {
	return a.Config.Settings()
}

// Bookmarks lists every web bookmark in store order.
func (a *App) Bookmarks(ctx context.Context) ([]models.Bookmark, error) {
	forest, err := a.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	return models.FlattenBookmarks(forest), nil
}

// Scan probes and categorizes every bookmark in the store.
func (a *App) Scan(ctx context.Context, progress services.ProgressFunc) (models.ScanResult, error) {
	bookmarks, err := a.Bookmarks(ctx)
	if err != nil {
		return models.ScanResult{}, err
	}
	return a.ScanService.Run(ctx, bookmarks, a.Settings(), progress)
}

// CheckAccessibility probes one URL.
func (a *App) CheckAccessibility(ctx context.Context, rawURL string) models.AccessibilityResult {
	return a.ScanService.CheckAccessibility(ctx, rawURL)
}

// Categorize assigns a category to one URL.
func (a *App) Categorize(ctx context.Context, rawURL string) models.CategoryResult {
	return a.ScanService.Categorize(ctx, rawURL, a.Settings())
}

// Organize applies a scan to the store.
func (a *App) Organize(ctx context.Context, scan models.ScanResult) models.OrganizationResult {
	return a.OrganizeService.Apply(ctx, scan.Categories, scan.Broken, a.Settings())
}

// TestClassifierConnection sends a minimal request to the configured provider.
func (a *App) TestClassifierConnection(ctx context.Context) (models.ClassifierStatus, error) {
	return a.Classifier.TestConnection(ctx, a.Settings())
}

// ImportFile loads a Netscape bookmark export under parentID.
func (a *App) ImportFile(ctx context.Context, path, parentID string) (int, error) {
	nodes, err := bookmarkfile.ParseFile(path)
	if err != nil {
		return 0, err
	}
	if parentID == "" {
		parentID = store.OtherBookmarksID
	}
	n, err := a.Store.Import(ctx, parentID, nodes)
	if err != nil {
		return 0, err
	}
	log.Infof("Imported %d bookmarks from %s", n, path)
	return n, nil
}

// EnqueueScan queues a background scan.
func (a *App) EnqueueScan(ctx context.Context, organize bool) (string, error) {
	if a.JobClient == nil {
		return "", fmt.Errorf("background jobs are not available")
	}
	id, err := a.JobClient.EnqueueScanJob(ctx, organize)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
