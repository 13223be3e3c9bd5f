// Package engine wires the scanner, planner, catalogs, download manager
// and history store into the operations every frontend consumes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/modelink/modelink/internal/catalog"
	"github.com/modelink/modelink/internal/config"
	"github.com/modelink/modelink/internal/download"
	"github.com/modelink/modelink/internal/planner"
	"github.com/modelink/modelink/internal/scanner"
	"github.com/modelink/modelink/internal/state"
	"github.com/modelink/modelink/internal/workflow"
	"github.com/modelink/modelink/pkg/core"
)

// Engine is the composition root for all model resolution operations.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	scanner  *scanner.Scanner
	index    *scanner.Index
	resolver *catalog.Resolver
	planner  *planner.Planner
	manager  *download.Manager
	store    *state.Store
}

// New builds an engine from configuration. The initial filesystem scan
// happens here, so construction cost scales with the model library.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	popular, err := catalog.LoadPopular(cfg.PopularCatalog)
	if err != nil {
		return nil, fmt.Errorf("loading popular catalog: %w", err)
	}
	modelDB, err := catalog.LoadModelDB(cfg.ModelDB)
	if err != nil {
		return nil, fmt.Errorf("loading model database: %w", err)
	}
	if cfg.StatePath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}
	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	sc := scanner.New(cfg.Roots(), logger)
	ix := scanner.NewIndex(sc)
	ix.Rebuild()

	resolver := catalog.NewResolver(
		popular,
		modelDB,
		catalog.NewHuggingFace(cfg.HuggingFace.Endpoint, cfg.HuggingFace.Token, logger),
		catalog.NewCivitai(cfg.Civitai.Endpoint, cfg.Civitai.Token, logger),
		cfg.CatalogTimeout,
		logger,
	)

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		scanner:  sc,
		index:    ix,
		resolver: resolver,
		planner:  planner.New(ix, resolver, logger),
		store:    store,
	}
	e.manager = download.NewManager(sc, e.downloadFinished, logger)
	return e, nil
}

// Close releases the engine's resources after in-flight downloads end.
func (e *Engine) Close() error {
	e.manager.Wait()
	return e.store.Close()
}

// downloadFinished records history and refreshes the index when a new
// file landed.
func (e *Engine) downloadFinished(job core.DownloadJob) {
	if err := e.store.RecordDownload(job); err != nil {
		e.logger.Warn("recording download history failed", "id", job.ID, "error", err)
	}
	if job.State == core.JobCompleted {
		e.index.Rebuild()
	}
}

// Analyze parses a workflow and reports its missing models.
func (e *Engine) Analyze(ctx context.Context, rawWorkflow []byte) (*planner.Analysis, error) {
	g, err := workflow.Parse(rawWorkflow)
	if err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	return e.planner.Analyze(ctx, g)
}

// Resolve applies caller-chosen resolutions to a workflow and returns
// the patched serialization. The input graph is never modified; any
// invalid resolution rejects the whole batch.
func (e *Engine) Resolve(ctx context.Context, rawWorkflow []byte, resolutions []planner.Resolution) ([]byte, error) {
	g, err := workflow.Parse(rawWorkflow)
	if err != nil {
		return nil, fmt.Errorf("parsing workflow: %w", err)
	}
	patches, err := planner.PlanResolution(resolutions)
	if err != nil {
		return nil, err
	}
	patched, err := workflow.Apply(g, patches)
	if err != nil {
		return nil, err
	}

	for _, r := range resolutions {
		ref := core.ModelReference{
			NodeID:      r.NodeID,
			WidgetIndex: r.WidgetIndex,
			SubgraphID:  r.SubgraphID,
		}
		if r.ResolvedModel != nil {
			ref.Category = r.ResolvedModel.Category
		}
		if err := e.store.RecordResolution(ref, r.ResolvedPath); err != nil {
			e.logger.Warn("recording resolution history failed", "error", err)
		}
	}
	return patched.Marshal()
}

// AutoResolve analyzes a workflow and patches every reference whose
// best local candidate scored 100. Returns the patched serialization,
// the number of patched references, and the models left unresolved.
func (e *Engine) AutoResolve(ctx context.Context, rawWorkflow []byte) ([]byte, int, []core.MissingModel, error) {
	g, err := workflow.Parse(rawWorkflow)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("parsing workflow: %w", err)
	}
	analysis, err := e.planner.Analyze(ctx, g)
	if err != nil {
		return nil, 0, nil, err
	}
	patches, unresolved := planner.PlanAutoResolution(analysis.Missing)
	if len(patches) == 0 {
		out, err := g.Marshal()
		return out, 0, unresolved, err
	}
	patched, err := workflow.Apply(g, patches)
	if err != nil {
		return nil, 0, nil, err
	}
	out, err := patched.Marshal()
	return out, len(patches), unresolved, err
}

// StartDownload begins a transfer into the category's directory.
func (e *Engine) StartDownload(ctx context.Context, url, filename, category string) (string, error) {
	return e.manager.Start(ctx, url, filename, scanner.CanonicalCategory(category))
}

// Progress returns a job snapshot; see download.Manager.Poll for the
// terminal observation contract.
func (e *Engine) Progress(id string) (core.DownloadJob, error) {
	return e.manager.Poll(id)
}

// CancelDownload requests cooperative cancellation of a job.
func (e *Engine) CancelDownload(id string) error {
	return e.manager.Cancel(id)
}

// ActiveDownloads snapshots every running job.
func (e *Engine) ActiveDownloads() []core.DownloadJob {
	return e.manager.Active()
}

// Search queries all catalogs for a filename.
func (e *Engine) Search(ctx context.Context, filename, category string) catalog.SearchResult {
	return e.resolver.Search(ctx, filename, scanner.CanonicalCategory(category))
}

// Rescan rebuilds the local model index.
func (e *Engine) Rescan() {
	e.index.Rebuild()
	e.logger.Info("model index rebuilt", "files", e.index.Len())
}

// Watch keeps the index synchronized with the filesystem until ctx ends.
func (e *Engine) Watch(ctx context.Context) error {
	err := e.index.Watch(ctx, e.logger, nil)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Index exposes the local model index for read-only consumers.
func (e *Engine) Index() *scanner.Index { return e.index }

// DownloadHistory lists recent terminal downloads.
func (e *Engine) DownloadHistory(limit int) ([]state.DownloadRecord, error) {
	return e.store.ListRecentDownloads(limit)
}

// ResolutionHistory lists recently applied resolutions.
func (e *Engine) ResolutionHistory(limit int) ([]state.ResolutionRecord, error) {
	return e.store.ListRecentResolutions(limit)
}
