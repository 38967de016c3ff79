// Package keyword maintains a bleve full-text index alongside the vector store.
package keyword

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"perspective/internal/domain"
)

const batchSize = 500

// boltTimeout bounds the wait for the index file lock held by another process.
const boltTimeout = "1s"

var newBleve = bleve.New

type fragmentDoc struct {
	Text     string `json:"text"`
	Summary  string `json:"summary"`
	Category string `json:"category"`
}

// Index is a bleve index whose document IDs are store positions.
type Index struct {
	mu    sync.RWMutex
	dir   string
	index bleve.Index
}

// Open opens the index in dir, creating an empty one if none exists.
// An empty dir keeps the index in memory.
func Open(dir string) (*Index, error) {
	if dir == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory keyword index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	if _, err := os.Stat(dir); err == nil {
		idx, err := bleve.OpenUsing(dir, map[string]interface{}{"bolt_timeout": boltTimeout})
		if err != nil {
			return nil, fmt.Errorf("open keyword index: %w", err)
		}
		return &Index{dir: dir, index: idx}, nil
	}

	idx, err := create(dir)
	if err != nil {
		return nil, err
	}
	return &Index{dir: dir, index: idx}, nil
}

func create(dir string) (bleve.Index, error) {
	if dir == "" {
		return bleve.NewMemOnly(buildIndexMapping())
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("reset keyword index dir: %w", err)
	}
	idx, err := newBleve(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return idx, nil
}

// Rebuild replaces the index contents with fragments, using each fragment's
// slice position as its ID. The new index is built beside the live one and
// swapped in only when complete, so a failed rebuild leaves it searchable.
func (i *Index) Rebuild(fragments []domain.Fragment) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	staging := ""
	if i.dir != "" {
		staging = i.dir + ".rebuild"
	}
	idx, err := create(staging)
	if err != nil {
		return err
	}
	if err := fill(idx, fragments); err != nil {
		idx.Close()
		if staging != "" {
			os.RemoveAll(staging)
		}
		return err
	}

	if staging == "" {
		old := i.index
		i.index = idx
		return old.Close()
	}

	if err := idx.Close(); err != nil {
		os.RemoveAll(staging)
		return fmt.Errorf("close staged keyword index: %w", err)
	}
	if err := i.index.Close(); err != nil {
		return fmt.Errorf("close keyword index: %w", err)
	}
	if err := os.RemoveAll(i.dir); err != nil {
		return fmt.Errorf("reset keyword index dir: %w", err)
	}
	if err := os.Rename(staging, i.dir); err != nil {
		return fmt.Errorf("swap keyword index: %w", err)
	}
	reopened, err := bleve.OpenUsing(i.dir, map[string]interface{}{"bolt_timeout": boltTimeout})
	if err != nil {
		return fmt.Errorf("open keyword index: %w", err)
	}
	i.index = reopened
	return nil
}

func fill(idx bleve.Index, fragments []domain.Fragment) error {
	batch := idx.NewBatch()
	for pos, frag := range fragments {
		doc := fragmentDoc{Text: frag.Text, Summary: frag.Summary, Category: frag.Category}
		if err := batch.Index(strconv.Itoa(pos), doc); err != nil {
			return fmt.Errorf("index fragment %d: %w", pos, err)
		}
		if batch.Size() >= batchSize {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("write keyword batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("write keyword batch: %w", err)
		}
	}
	return nil
}

// Search returns up to k fragments matching query, best first.
func (i *Index) Search(query string, k int) ([]domain.KeywordHit, error) {
	query = strings.TrimSpace(query)
	if k <= 0 || query == "" {
		return []domain.KeywordHit{}, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	textQuery := bleve.NewMatchQuery(query)
	textQuery.SetField("text")
	textQuery.SetBoost(1.0)
	summaryQuery := bleve.NewMatchQuery(query)
	summaryQuery.SetField("summary")
	summaryQuery.SetBoost(1.5)
	disjunction := bleve.NewDisjunctionQuery([]blevequery.Query{textQuery, summaryQuery}...)

	req := bleve.NewSearchRequestOptions(disjunction, k, 0, false)
	req.Fields = []string{"text", "summary", "category"}

	res, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]domain.KeywordHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		text, _ := hit.Fields["text"].(string)
		summary, _ := hit.Fields["summary"].(string)
		category, _ := hit.Fields["category"].(string)
		hits = append(hits, domain.KeywordHit{
			Position: pos,
			Score:    hit.Score,
			Fragment: domain.Fragment{Text: text, Summary: summary, Category: category},
		})
	}
	return hits, nil
}

// Count returns the number of indexed fragments.
func (i *Index) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "text"

	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Store = true
	textField.Index = true
	docMapping.AddFieldMappingsAt("text", textField)

	summaryField := bleve.NewTextFieldMapping()
	summaryField.Store = true
	summaryField.Index = true
	docMapping.AddFieldMappingsAt("summary", summaryField)

	categoryField := bleve.NewTextFieldMapping()
	categoryField.Store = true
	categoryField.Index = true
	categoryField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("category", categoryField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
