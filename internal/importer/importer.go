package importer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"shopsync/internal/remote"
	"shopsync/internal/store"
)

// defaultChunkSize keeps batched commits under the remote's batch limit.
const defaultChunkSize = 300

// Options control one import run.
type Options struct {
	// DryRun computes and returns the diff report without writing anything.
	DryRun bool
	// Overwrite rewrites documents that already exist remotely; when false,
	// existing documents are left untouched and only new ones are created.
	Overwrite bool
	// PruneMissing deletes remote documents whose id is absent from the
	// bundle.
	PruneMissing bool
	// Sections restricts the run; empty means all sections.
	Sections []Section
	// ChunkSize overrides the batch chunk size (default 300).
	ChunkSize int
}

// SectionResult reports what one section's run did.
type SectionResult struct {
	Section Section
	Diff    Diff
	// Skipped is true when the checksum gate decided nothing had to be done.
	Skipped bool
	// Upserted and Deleted count the documents actually written/removed.
	Upserted int
	Deleted  int
}

// Outcome is the structured result of a run.
type Outcome struct {
	DryRun   bool
	Sections []SectionResult
}

// TotalUpserted sums the written documents across sections.
func (o Outcome) TotalUpserted() int {
	n := 0
	for _, s := range o.Sections {
		n += s.Upserted
	}
	return n
}

// TotalDeleted sums the pruned documents across sections.
func (o Outcome) TotalDeleted() int {
	n := 0
	for _, s := range o.Sections {
		n += s.Deleted
	}
	return n
}

// Importer runs the checksum-gated bulk import against the remote catalog
// collections.
type Importer struct {
	bundle      BundleSource
	collections map[Section]remote.Collection
	checksums   *store.ChecksumStore
	retry       remote.RetryPolicy
	log         *zap.SugaredLogger

	// now is a clock hook for tests.
	now func() time.Time
}

func New(
	bundle BundleSource,
	collections map[Section]remote.Collection,
	checksums *store.ChecksumStore,
	log *zap.SugaredLogger,
) *Importer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Importer{
		bundle:      bundle,
		collections: collections,
		checksums:   checksums,
		retry:       remote.DefaultRetryPolicy(),
		log:         log,
		now:         time.Now,
	}
}

// Run executes the pipeline: load bundle, checksum, dry-run diff, then per
// eligible section prune and chunked retrying writes. The configuration is
// validated before any I/O.
func (imp *Importer) Run(ctx context.Context, opts Options) (Outcome, error) {
	sections := opts.Sections
	if len(sections) == 0 {
		sections = AllSections
	}
	if imp.bundle == nil || imp.checksums == nil {
		return Outcome{}, fmt.Errorf("importer is not configured")
	}
	for _, s := range sections {
		if imp.collections[s] == nil {
			return Outcome{}, fmt.Errorf("no remote collection configured for section %s", s)
		}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}

	out := Outcome{DryRun: opts.DryRun}
	for _, s := range sections {
		res, err := imp.runSection(ctx, s, opts)
		if err != nil {
			return out, fmt.Errorf("section %s: %w", s, err)
		}
		out.Sections = append(out.Sections, res)
	}
	return out, nil
}

func (imp *Importer) runSection(ctx context.Context, s Section, opts Options) (SectionResult, error) {
	col := imp.collections[s]

	raw, docs, err := loadSection(imp.bundle, s)
	if err != nil {
		return SectionResult{}, err
	}
	hash := contentHash(raw)

	diff, err := computeDiff(ctx, s, col, docs, opts.Overwrite)
	if err != nil {
		return SectionResult{}, err
	}
	res := SectionResult{Section: s, Diff: diff}

	if opts.DryRun {
		return res, nil
	}

	stored, err := imp.checksums.Get(ctx, s.ChecksumKey())
	if err != nil {
		return SectionResult{}, err
	}
	// Import is needed when the content hash moved or the diff shows work.
	if stored == hash && !diff.Changed(opts.PruneMissing) {
		res.Skipped = true
		imp.log.Infow("section unchanged, skipping", "section", s, "hash", hash)
		return res, nil
	}

	if opts.PruneMissing && len(diff.missingIDs) > 0 {
		for _, chunk := range chunkStrings(diff.missingIDs, opts.ChunkSize) {
			chunk := chunk
			err := imp.retry.Do(ctx, "prune "+string(s), func(ctx context.Context) error {
				return col.BatchDelete(ctx, chunk)
			})
			if err != nil {
				return SectionResult{}, err
			}
			res.Deleted += len(chunk)
		}
	}

	now := imp.now().UTC().Format(time.RFC3339Nano)
	for _, chunk := range chunkDocs(docs, opts.ChunkSize) {
		ops := make([]remote.WriteOp, 0, len(chunk))
		for _, d := range chunk {
			id := remote.DocID(d)
			existing, exists := diff.existing[id]
			if exists && !opts.Overwrite {
				continue
			}
			// Field-identical documents are skipped, keeping the applied
			// counts equal to what the dry-run reported.
			if exists && fieldsEqual(s, existing, d) {
				continue
			}
			data := make(remote.Document, len(d)+2)
			for k, v := range d {
				data[k] = v
			}
			data["updated_at"] = now
			if exists {
				// Never overwrite an existing creation stamp.
				if created, ok := existing["created_at"]; ok {
					data["created_at"] = created
				}
			} else if _, ok := data["created_at"]; !ok {
				data["created_at"] = now
			}
			ops = append(ops, remote.WriteOp{ID: id, Data: data})
		}
		if len(ops) == 0 {
			continue
		}
		err := imp.retry.Do(ctx, "import "+string(s), func(ctx context.Context) error {
			return col.BatchWrite(ctx, ops)
		})
		if err != nil {
			return SectionResult{}, err
		}
		res.Upserted += len(ops)
	}

	// Persist the checksum only after something was actually written; a run
	// that wrote nothing must not convince a future run it is in sync.
	if res.Upserted > 0 || res.Deleted > 0 {
		if err := imp.checksums.Put(ctx, s.ChecksumKey(), hash); err != nil {
			return SectionResult{}, err
		}
	}
	imp.log.Infow("section imported",
		"section", s,
		"upserted", res.Upserted,
		"deleted", res.Deleted,
		"creates", diff.Creates,
		"updates", diff.Updates,
		"skips", diff.Skips,
	)
	return res, nil
}

func chunkDocs(docs []remote.Document, size int) [][]remote.Document {
	var out [][]remote.Document
	for start := 0; start < len(docs); start += size {
		end := start + size
		if end > len(docs) {
			end = len(docs)
		}
		out = append(out, docs[start:end])
	}
	return out
}

func chunkStrings(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
