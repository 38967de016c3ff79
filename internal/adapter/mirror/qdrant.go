// Package mirror copies the local vector store into a qdrant collection.
package mirror

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"perspective/internal/domain"
	"perspective/internal/logging"
)

const upsertBatch = 256

// Config holds qdrant connection configuration.
type Config struct {
	// URL is the qdrant gRPC address, e.g. "http://localhost:6334".
	URL        string
	Collection string
	APIKey     string
}

type endpoint struct {
	host   string
	port   int
	useTLS bool
}

func parseEndpoint(raw string) (endpoint, error) {
	if raw == "" {
		return endpoint{}, fmt.Errorf("qdrant url is required")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	ep := endpoint{host: u.Hostname(), port: 6334, useTLS: u.Scheme == "https"}
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return endpoint{}, fmt.Errorf("invalid port: %w", err)
		}
		ep.port = p
	}
	return ep, nil
}

// Qdrant mirrors fragments as points whose IDs are store positions.
type Qdrant struct {
	client     *qdrant.Client
	collection string
}

func New(cfg Config) (*Qdrant, error) {
	ep, err := parseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   ep.host,
		Port:   ep.port,
		APIKey: cfg.APIKey,
		UseTLS: ep.useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Qdrant{client: client, collection: cfg.Collection}, nil
}

// Sync replaces the collection with the given aligned vectors and fragments.
func (q *Qdrant) Sync(ctx context.Context, vectors [][]float32, fragments []domain.Fragment) error {
	if len(vectors) != len(fragments) {
		return fmt.Errorf("%w: %d vectors, %d fragments", domain.ErrShapeMismatch, len(vectors), len(fragments))
	}
	if len(vectors) == 0 {
		logging.Debugf("qdrant mirror: nothing to sync")
		return nil
	}

	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("qdrant collection check failed: %w", err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("qdrant delete collection failed: %w", err)
		}
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(len(vectors[0])),
			Distance: qdrant.Distance_Euclid,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}

	wait := true
	for start := 0; start < len(vectors); start += upsertBatch {
		end := start + upsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           &wait,
			Points:         buildPoints(start, vectors[start:end], fragments[start:end]),
		})
		if err != nil {
			return fmt.Errorf("qdrant upsert failed at %d: %w", start, err)
		}
	}

	logging.Infof("qdrant mirror: synced %d points to %s", len(vectors), q.collection)
	return nil
}

// Count returns the number of points in the collection.
func (q *Qdrant) Count(ctx context.Context) (uint64, error) {
	exact := true
	return q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          &exact,
	})
}

func (q *Qdrant) Close() error {
	return q.client.Close()
}

func buildPoints(offset int, vectors [][]float32, fragments []domain.Fragment) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		frag := fragments[i]
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(offset + i)),
			Vectors: qdrant.NewVectors(v...),
			Payload: qdrant.NewValueMap(map[string]any{
				"text":     frag.Text,
				"category": frag.Category,
				"summary":  frag.Summary,
				"position": int64(offset + i),
			}),
		}
	}
	return points
}
