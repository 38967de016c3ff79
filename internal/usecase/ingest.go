package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"perspective/internal/adapter/fs"
	"perspective/internal/adapter/labeler"
	"perspective/internal/adapter/store"
	"perspective/internal/domain"
	"perspective/internal/logging"
	"perspective/internal/port"
)

// ProgressFunc reports progress of a long-running stage.
type ProgressFunc func(stage string, done, total int)

// IngestOptions configures an IngestUseCase. Labeler, Keyword and Mirror are optional.
type IngestOptions struct {
	IndexPath      string
	MetadataPath   string
	BatchSize      int
	LabelBatchSize int
	Labeler        port.Labeler
	Keyword        port.KeywordIndex
	Mirror         port.Mirror
	Progress       ProgressFunc
}

// IngestUseCase appends labeled fragments to the persisted vector store.
type IngestUseCase struct {
	embedder port.Embedder
	opts     IngestOptions
}

// NewIngestUseCase creates an ingest use case.
func NewIngestUseCase(embedder port.Embedder, opts IngestOptions) *IngestUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.LabelBatchSize <= 0 {
		opts.LabelBatchSize = 10
	}
	return &IngestUseCase{embedder: embedder, opts: opts}
}

// IngestResult contains the results of an ingest operation.
type IngestResult struct {
	Existing bool // a persisted store was extended
	Files    int
	Labeled  int
	Added    int
	Skipped  int
	Total    int
	Keyword  bool
	Mirrored bool
	Errors   []string
}

// IngestFiles reads .jsonl files as labeled fragments and any other file as
// raw texts separated by blank lines, which are labeled first.
func (u *IngestUseCase) IngestFiles(ctx context.Context, files []fs.FileInfo) (*IngestResult, error) {
	var (
		fragments []domain.Fragment
		raw       []string
		skipped   int
	)

	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f.Path), ".jsonl") {
			res, err := labeler.ReadLabeled(f.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
			}
			fragments = append(fragments, res.Fragments...)
			skipped += res.Skipped
			continue
		}
		texts, err := labeler.ReadRawTexts(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		raw = append(raw, texts...)
	}

	labeled, err := u.label(ctx, raw)
	if err != nil {
		return nil, err
	}
	fragments = append(fragments, labeled...)

	result, err := u.IngestFragments(ctx, fragments)
	if err != nil {
		return nil, err
	}
	result.Files = len(files)
	result.Labeled = len(labeled)
	result.Skipped += skipped
	return result, nil
}

// IngestTexts labels raw texts and ingests the resulting fragments.
func (u *IngestUseCase) IngestTexts(ctx context.Context, texts []string) (*IngestResult, error) {
	labeled, err := u.label(ctx, texts)
	if err != nil {
		return nil, err
	}
	result, err := u.IngestFragments(ctx, labeled)
	if err != nil {
		return nil, err
	}
	result.Labeled = len(labeled)
	return result, nil
}

func (u *IngestUseCase) label(ctx context.Context, texts []string) ([]domain.Fragment, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if u.opts.Labeler == nil {
		return nil, fmt.Errorf("%d raw texts need labeling but no labeler is configured", len(texts))
	}
	return labeler.LabelAll(ctx, u.opts.Labeler, texts, u.opts.LabelBatchSize, func(done, total int) {
		u.progress("label", done, total)
	})
}

// IngestFragments adds fragments to the store in batches and saves it. The
// persisted store is only rewritten after every batch succeeded.
func (u *IngestUseCase) IngestFragments(ctx context.Context, fragments []domain.Fragment) (*IngestResult, error) {
	result := &IngestResult{}

	s, existed, err := store.OpenOrCreateVectorStore(u.embedder, u.opts.IndexPath, u.opts.MetadataPath)
	if err != nil {
		return nil, err
	}
	result.Existing = existed
	if existed {
		logging.Infof("extending existing store with %d fragments", s.Len())
	}

	var batch []domain.Fragment
	for _, frag := range fragments {
		if strings.TrimSpace(frag.Text) == "" {
			result.Skipped++
			continue
		}
		batch = append(batch, frag)
	}

	for start := 0; start < len(batch); start += u.opts.BatchSize {
		end := start + u.opts.BatchSize
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]

		texts := make([]string, len(chunk))
		for i, f := range chunk {
			texts[i] = f.Text
		}
		if err := s.Add(ctx, texts, chunk); err != nil {
			return nil, fmt.Errorf("failed to add batch %d-%d: %w", start, end, err)
		}
		result.Added += len(chunk)
		u.progress("embed", result.Added, len(batch))
	}

	if err := s.Save(u.opts.IndexPath, u.opts.MetadataPath); err != nil {
		return nil, fmt.Errorf("failed to save store: %w", err)
	}
	result.Total = s.Len()

	if u.opts.Keyword != nil {
		if err := u.opts.Keyword.Rebuild(s.Fragments()); err != nil {
			logging.Warnf("keyword index rebuild failed: %v", err)
			result.Errors = append(result.Errors, fmt.Sprintf("keyword index: %v", err))
		} else {
			result.Keyword = true
		}
	}

	if u.opts.Mirror != nil {
		vectors, frags := s.Snapshot()
		if err := u.opts.Mirror.Sync(ctx, vectors, frags); err != nil {
			logging.Warnf("mirror sync failed: %v", err)
			result.Errors = append(result.Errors, fmt.Sprintf("mirror: %v", err))
		} else {
			result.Mirrored = true
		}
	}

	return result, nil
}

func (u *IngestUseCase) progress(stage string, done, total int) {
	if u.opts.Progress != nil {
		u.opts.Progress(stage, done, total)
	}
}
