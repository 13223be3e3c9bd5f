// Package planner turns a workflow graph into an actionable resolution
// plan. It extracts model references, buckets them by normalized path so
// each logical file is matched and resolved once, and produces the
// ordered missing-model report consumers act on.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/modelink/modelink/internal/catalog"
	"github.com/modelink/modelink/internal/matcher"
	"github.com/modelink/modelink/internal/workflow"
	"github.com/modelink/modelink/pkg/core"
)

// maxParallelBuckets bounds concurrent catalog lookups during analyze.
const maxParallelBuckets = 4

// Planner couples the local file matcher with the catalog resolver.
type Planner struct {
	store    core.Store
	resolver *catalog.Resolver
	logger   *slog.Logger
}

// New builds a planner. resolver may be nil, which disables download
// source discovery but leaves local matching intact.
func New(store core.Store, resolver *catalog.Resolver, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{store: store, resolver: resolver, logger: logger}
}

// Analysis is the outcome of analyzing one workflow graph.
type Analysis struct {
	Missing      []core.MissingModel `json:"missingModels"`
	TotalMissing int                 `json:"totalMissing"`
	// TotalReferences counts every model reference found, resolved or not.
	TotalReferences int `json:"totalReferences"`
}

// Analyze extracts every model reference from g, drops the ones already
// present locally, and reports one MissingModel per distinct normalized
// path. Buckets are matched and resolved concurrently; output order
// follows first appearance in the graph, with exact-candidate entries
// grouped first and the rest ordered by best confidence.
func (p *Planner) Analyze(ctx context.Context, g workflow.Graph) (*Analysis, error) {
	refs := workflow.Extract(g, p.logger)
	embedded := workflow.ExtractEmbeddedSources(g)

	// Bucket references sharing a normalized path, preserving the order
	// in which each bucket first appears.
	type bucket struct {
		refs []core.ModelReference
	}
	order := make([]string, 0, len(refs))
	buckets := make(map[string]*bucket, len(refs))
	for _, ref := range refs {
		key := matcher.NormalizePath(ref.OriginalPath)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.refs = append(b.refs, ref)
	}

	missing := make([]*core.MissingModel, len(order))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelBuckets)
	for i, key := range order {
		b := buckets[key]
		eg.Go(func() error {
			missing[i] = p.analyzeBucket(ctx, b.refs, embedded)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("analyzing workflow: %w", err)
	}

	out := &Analysis{TotalReferences: len(refs)}
	for _, m := range missing {
		if m != nil {
			out.Missing = append(out.Missing, *m)
		}
	}
	sortMissing(out.Missing)
	out.TotalMissing = len(out.Missing)

	p.logger.Info("workflow analyzed",
		"references", len(refs),
		"distinct", len(order),
		"missing", out.TotalMissing)
	return out, nil
}

// analyzeBucket handles one logical file. Returns nil when the file
// exists locally under its authored path. The bucket's category comes
// from the first reference with a known node-type hint, so a second
// reference from an unrecognized node type never splits the bucket or
// degrades its category.
func (p *Planner) analyzeBucket(ctx context.Context, refs []core.ModelReference, embedded map[string]workflow.EmbeddedSource) *core.MissingModel {
	first := refs[0]
	first.Category = bucketCategory(refs)
	if _, ok := p.store.Lookup(first.Category, first.OriginalPath); ok {
		return nil
	}

	candidates := matcher.Match(first, p.store)
	kept, suppressed := matcher.Actionable(candidates)

	m := &core.MissingModel{
		OriginalPath:         first.OriginalPath,
		Category:             first.Category,
		Candidates:           kept,
		SuppressedCandidates: suppressed,
		References:           refs,
	}
	if p.resolver != nil {
		es := workflow.EmbeddedSourceFor(embedded, first.OriginalPath, first.Category)
		m.DownloadSource = p.resolver.Resolve(ctx, first, es)
	}
	return m
}

// bucketCategory picks the category for a reference bucket: the first
// hinted one, falling back to the first reference's value.
func bucketCategory(refs []core.ModelReference) string {
	for _, ref := range refs {
		if ref.Category != "" && ref.Category != "unknown" {
			return ref.Category
		}
	}
	return refs[0].Category
}

// sortMissing orders entries with an exact candidate first, then by
// descending best confidence. The sort is stable so graph order breaks
// ties.
func sortMissing(missing []core.MissingModel) {
	sort.SliceStable(missing, func(i, j int) bool {
		ei, ej := missing[i].HasExactCandidate(), missing[j].HasExactCandidate()
		if ei != ej {
			return ei
		}
		return missing[i].BestConfidence() > missing[j].BestConfidence()
	})
}

// Resolution pairs a reference with the local path chosen for it.
type Resolution struct {
	NodeID       int    `json:"nodeId"`
	WidgetIndex  int    `json:"widgetIndex"`
	SubgraphID   string `json:"subgraphId,omitempty"`
	ResolvedPath string `json:"resolvedPath"`
	// ResolvedModel carries the chosen file's metadata when the caller
	// picked a concrete candidate. Informational only.
	ResolvedModel *core.ModelFile `json:"resolvedModel,omitempty"`
}

// PlanResolution converts caller-chosen resolutions into graph patches.
// Entries with an empty resolved path are rejected.
func PlanResolution(resolutions []Resolution) ([]core.Patch, error) {
	patches := make([]core.Patch, 0, len(resolutions))
	for _, r := range resolutions {
		if r.ResolvedPath == "" {
			return nil, fmt.Errorf("resolution for node %d widget %d has no resolved path", r.NodeID, r.WidgetIndex)
		}
		patches = append(patches, core.Patch{
			NodeID:      r.NodeID,
			WidgetIndex: r.WidgetIndex,
			SubgraphID:  r.SubgraphID,
			NewPath:     r.ResolvedPath,
		})
	}
	return patches, nil
}

// PlanAutoResolution builds patches for every missing model whose best
// candidate scored exactly 100. Each reference in the bucket receives
// its own patch. Models without an exact candidate are skipped and
// reported in the second return.
func PlanAutoResolution(missing []core.MissingModel) (patches []core.Patch, unresolved []core.MissingModel) {
	for _, m := range missing {
		if !m.HasExactCandidate() {
			unresolved = append(unresolved, m)
			continue
		}
		chosen := m.Candidates[0].File
		for _, ref := range m.References {
			patches = append(patches, core.Patch{
				NodeID:      ref.NodeID,
				WidgetIndex: ref.WidgetIndex,
				SubgraphID:  ref.SubgraphID,
				NewPath:     chosen.RelativePath,
			})
		}
	}
	return patches, unresolved
}
