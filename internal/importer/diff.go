package importer

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"shopsync/internal/remote"
)

// compareFields is the allow-listed field set compared per section. Timestamps
// are stamps, not content, and never participate in the comparison.
var compareFields = map[Section][]string{
	SectionBrands:     {"name", "image_url", "is_active"},
	SectionCategories: {"name", "image_url", "brand_ids", "is_active"},
	SectionProducts:   {"name", "category_id", "brand_id", "price", "image_url", "is_active", "keywords"},
}

// Diff is the dry-run report for one section.
type Diff struct {
	Section Section

	Creates int
	Updates int
	Skips   int
	// Deletes counts remote ids absent from the bundle; acted on only when
	// pruning is enabled.
	Deletes int

	// existing maps bundled ids that already have a remote document.
	existing map[string]remote.Document
	// missingIDs are the prune candidates.
	missingIDs []string
}

// Changed reports whether applying the bundle would touch the remote at all.
func (d Diff) Changed(prune bool) bool {
	return d.Creates > 0 || d.Updates > 0 || (prune && d.Deletes > 0)
}

// computeDiff builds the dry-run report for one section: existing matching
// documents and the full remote id set are fetched concurrently, then every
// bundled record is classified as create, update or skip, and every remote id
// missing from the bundle counts as a delete candidate. Without overwrite an
// existing document is never rewritten, so a drifted one counts as a skip,
// keeping the report equal to what an apply with the same flags performs.
func computeDiff(ctx context.Context, s Section, col remote.Collection, docs []remote.Document, overwrite bool) (Diff, error) {
	jsonIDs := make([]string, 0, len(docs))
	inBundle := make(map[string]bool, len(docs))
	for _, d := range docs {
		id := remote.DocID(d)
		jsonIDs = append(jsonIDs, id)
		inBundle[id] = true
	}

	var (
		matching  []remote.Document
		remoteIDs []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matching, err = col.FetchByIDs(gctx, jsonIDs)
		return err
	})
	g.Go(func() error {
		var err error
		remoteIDs, err = col.ListIDs(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Diff{}, err
	}

	diff := Diff{Section: s, existing: make(map[string]remote.Document, len(matching))}
	for _, d := range matching {
		diff.existing[remote.DocID(d)] = d
	}
	for _, d := range docs {
		old, ok := diff.existing[remote.DocID(d)]
		switch {
		case !ok:
			diff.Creates++
		case !overwrite || fieldsEqual(s, old, d):
			diff.Skips++
		default:
			diff.Updates++
		}
	}
	for _, id := range remoteIDs {
		if !inBundle[id] {
			diff.Deletes++
			diff.missingIDs = append(diff.missingIDs, id)
		}
	}
	return diff, nil
}

// fieldsEqual compares the allow-listed fields of two documents. Both sides
// are reduced to the field subset and re-encoded as canonical JSON (object
// keys sorted by encoding/json), so field order can never produce a spurious
// update.
func fieldsEqual(s Section, a, b remote.Document) bool {
	return string(canonicalFields(s, a)) == string(canonicalFields(s, b))
}

func canonicalFields(s Section, d remote.Document) []byte {
	subset := make(map[string]any, len(compareFields[s]))
	for _, f := range compareFields[s] {
		if v, ok := d[f]; ok {
			subset[f] = normalize(v)
		}
	}
	out, _ := json.Marshal(subset)
	return out
}

// normalize re-shapes values so that a freshly decoded bundle record and a
// remote document that round-tripped through JSON compare equal.
func normalize(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v
}
