package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"perspective/internal/domain"
)

const (
	truncationMarker = "...\n"
	blockSeparator   = "\n"
)

// PackedContext is the retrieval context handed to the language model.
type PackedContext struct {
	Text      string
	Included  int  // blocks fully or partially included
	Truncated bool // the last included block was cut
}

// SourceBlock renders one retrieval result as a context block. rank is 1-based.
func SourceBlock(rank int, frag domain.Fragment) string {
	return fmt.Sprintf("Source %d (Category: %s):\nSummary: %s\nContent: %s\n",
		rank, frag.Category, frag.Summary, frag.Text)
}

// PackContext greedily packs blocks in rank order into at most maxChars bytes,
// separators included. The first block that does not fit is cut and marked,
// and nothing after it is considered. maxChars <= 0 disables the bound.
func PackContext(results []domain.RetrievalResult, maxChars int) PackedContext {
	var (
		parts  []string
		total  int
		packed PackedContext
	)

	for i, r := range results {
		block := SourceBlock(i+1, r.Fragment)
		sep := 0
		if len(parts) > 0 {
			sep = len(blockSeparator)
		}

		if maxChars > 0 && total+sep+len(block) > maxChars {
			remaining := maxChars - total - sep - len(truncationMarker)
			// never cut inside a multi-byte rune
			for remaining > 0 && !utf8.RuneStart(block[remaining]) {
				remaining--
			}
			if remaining > 0 {
				parts = append(parts, block[:remaining]+truncationMarker)
				packed.Truncated = true
			}
			break
		}

		parts = append(parts, block)
		total += sep + len(block)
	}

	packed.Text = strings.Join(parts, blockSeparator)
	packed.Included = len(parts)
	return packed
}
