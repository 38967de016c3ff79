package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"perspective/internal/usecase"
)

// RunLines is interactive mode without a terminal: one question per line
// until a quit word or EOF. Errors for single questions are printed and the
// loop continues.
func RunLines(ctx context.Context, engine Answerer, in io.Reader, out io.Writer, topK int, persona string) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	for {
		fmt.Fprint(out, "\nYour question: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if IsQuit(q) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := engine.Answer(ctx, usecase.AnswerRequest{Query: q, TopK: topK, Persona: persona})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, "\n"+usecase.FormatPerspective(p))
	}
}
