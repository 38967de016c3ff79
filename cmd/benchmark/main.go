package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"perspective/config"
	"perspective/internal/adapter/embedding"
	"perspective/internal/adapter/store"
	"perspective/internal/domain"
)

var vocabulary = strings.Fields(`
	startup funding product market users growth hiring remote team culture
	open source rust golang python database latency cache kernel compiler
	climbing travel coffee books running music family cooking photography
	election policy climate economy energy housing inflation science space
	ai models training inference privacy security design writing teaching`)

func main() {
	size := flag.Int("n", 2000, "number of synthetic fragments")
	dim := flag.Int("dim", config.DefaultConfig().Embedding.Dimension, "vector dimension")
	topK := flag.Int("k", 5, "results per query")
	queries := flag.Int("queries", 200, "number of timed queries")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	if *size <= 0 || *dim <= 0 || *topK <= 0 || *queries <= 0 {
		fmt.Println("Usage: go run cmd/benchmark/main.go -n 2000 -dim 1536 -k 5 -queries 200")
		fmt.Println("\nMeasures:")
		fmt.Println("  1. Store build time (mock embeddings, batched add)")
		fmt.Println("  2. Flat-scan search latency (precomputed query vectors)")
		fmt.Println("  3. End-to-end search latency (embed + scan)")
		os.Exit(1)
	}

	ctx := context.Background()
	rng := rand.New(rand.NewSource(*seed))
	emb := embedding.NewMockEmbedder(*dim)
	vs := store.NewVectorStore(emb)

	fmt.Println("FLAT-SCAN SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Fragments: %d\n", *size)
	fmt.Printf("Dimension: %d\n", *dim)
	fmt.Printf("Top-k:     %d\n", *topK)
	fmt.Println()

	start := time.Now()
	const batch = 100
	for i := 0; i < *size; i += batch {
		n := batch
		if i+n > *size {
			n = *size - i
		}
		texts := make([]string, n)
		frags := make([]domain.Fragment, n)
		for j := range texts {
			texts[j] = sentence(rng, 12)
			frags[j] = domain.Fragment{
				Text:     texts[j],
				Category: domain.Categories[rng.Intn(len(domain.Categories))].Name,
				Summary:  sentence(rng, 6),
			}
		}
		if err := vs.Add(ctx, texts, frags); err != nil {
			fmt.Fprintf(os.Stderr, "Add error: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Build:     %s (%d fragments)\n", time.Since(start).Round(time.Millisecond), vs.Len())
	fmt.Println(strings.Repeat("-", 70))

	texts := make([]string, *queries)
	for i := range texts {
		texts[i] = sentence(rng, 4)
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}

	scan := make([]time.Duration, len(vecs))
	for i, v := range vecs {
		t := time.Now()
		if _, err := vs.SearchVector(v, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		scan[i] = time.Since(t)
	}

	full := make([]time.Duration, len(texts))
	for i, q := range texts {
		t := time.Now()
		if _, err := vs.Search(ctx, q, *topK); err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		full[i] = time.Since(t)
	}

	report("Scan only", scan)
	report("Embed+scan", full)

	fmt.Println(strings.Repeat("=", 70))
	perVector := mean(scan) / time.Duration(vs.Len())
	fmt.Printf("Per stored vector: %s\n", perVector)
}

func sentence(rng *rand.Rand, words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = vocabulary[rng.Intn(len(vocabulary))]
	}
	return strings.Join(parts, " ")
}

func report(name string, d []time.Duration) {
	sorted := append([]time.Duration(nil), d...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	pct := func(p float64) time.Duration {
		return sorted[int(p*float64(len(sorted)-1))]
	}
	fmt.Printf("%-11s mean %-10s p50 %-10s p95 %-10s max %s\n",
		name, mean(d), pct(0.50), pct(0.95), sorted[len(sorted)-1])
}

func mean(d []time.Duration) time.Duration {
	var total time.Duration
	for _, x := range d {
		total += x
	}
	return total / time.Duration(len(d))
}
