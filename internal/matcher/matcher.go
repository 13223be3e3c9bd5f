// Package matcher scores local model files as replacement candidates for
// missing workflow references.
//
// The policy: an exact filename match (case- and separator-insensitive)
// scores 100, as does a file whose basename matches but lives in a
// different directory. Everything else is scored by basename similarity
// and floored at 70 to be considered at all. Candidates at 100 sort before
// all others; within either group higher confidence sorts first and
// remaining ties keep the store's natural order.
package matcher

import (
	"math"
	"sort"

	"github.com/modelink/modelink/pkg/core"
)

// minSimilarity is the blended-similarity cutoff below which a candidate
// never reaches the confidence floor.
const minSimilarity = 0.5

// Match returns the scored candidates for one missing reference, filtered
// to confidence >= core.ConfidenceFloor and sorted by the matcher's total
// order. Same physical file appearing under multiple base directories is
// reported once, keeping the highest-scoring occurrence.
func Match(ref core.ModelReference, store core.Store) []core.MatchCandidate {
	wantPath := NormalizePath(ref.OriginalPath)
	wantBase := Basename(ref.OriginalPath)

	var out []core.MatchCandidate
	seen := make(map[string]int) // absolute path -> index in out

	for _, f := range store.Models(ref.Category) {
		conf := score(wantPath, wantBase, f)
		if conf < core.ConfidenceFloor {
			continue
		}
		if i, ok := seen[f.AbsolutePath]; ok {
			if conf > out[i].Confidence {
				out[i].Confidence = conf
			}
			continue
		}
		seen[f.AbsolutePath] = len(out)
		out = append(out, core.MatchCandidate{Confidence: conf, File: f})
	}

	// Stable: remaining ties keep the store's natural order.
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := out[i].Confidence, out[j].Confidence
		if (ci == core.ConfidenceExact) != (cj == core.ConfidenceExact) {
			return ci == core.ConfidenceExact
		}
		return ci > cj
	})
	return out
}

// Actionable applies the suppression rule: once any candidate reaches 100,
// sub-100 candidates are dropped from the list the caller should act on.
// The second return is the number of suppressed candidates, preserved for
// display.
func Actionable(candidates []core.MatchCandidate) ([]core.MatchCandidate, int) {
	if len(candidates) == 0 || candidates[0].Confidence != core.ConfidenceExact {
		return candidates, 0
	}
	cut := len(candidates)
	for i, c := range candidates {
		if c.Confidence != core.ConfidenceExact {
			cut = i
			break
		}
	}
	return candidates[:cut], len(candidates) - cut
}

// score computes the confidence for one store file against the normalized
// wanted path and basename.
func score(wantPath, wantBase string, f core.ModelFile) int {
	relNorm := NormalizePath(f.RelativePath)
	if relNorm == wantPath {
		return core.ConfidenceExact
	}
	// Same basename under a different directory is still the same model.
	if Basename(f.Filename) == wantBase {
		return core.ConfidenceExact
	}

	sim := Similarity(wantBase, f.Filename)
	if sim < minSimilarity {
		return 0
	}
	// Map [minSimilarity, 1) onto [70, 99]; only true filename matches
	// may reach 100.
	conf := core.ConfidenceFloor + int(math.Round((sim-minSimilarity)/(1-minSimilarity)*30))
	if conf >= core.ConfidenceExact {
		conf = core.ConfidenceExact - 1
	}
	return conf
}
