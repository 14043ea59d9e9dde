// Package blocks converts synthesized markdown content into the typed block
// representation Result.Blocks exposes for downstream editing (spec.md
// §4.7). Grounded on the original implementation's
// _parse_markdown_to_blocks (exercised by ParseMarkdownToBlocksTest) and on
// internal/agents/synthesis.go's compileReport, which assembles the
// headings/paragraphs this parser consumes.
package blocks

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aperturelabs/deepquery/internal/research"
)

var headingRe = regexp.MustCompile(`^(#+)\s+(.*)$`)
var orderedListRe = regexp.MustCompile(`^\d+\.\s`)

// Parse converts markdown content into an ordered list of Blocks. Empty
// input yields an empty list. Idempotent on the subset of markdown this
// package itself emits (spec.md §8).
func Parse(content string) []research.Block {
	lines := strings.Split(content, "\n")
	var result []research.Block
	var paragraphBuf []string
	ordinal := 0

	flushParagraph := func() {
		if len(paragraphBuf) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(paragraphBuf, "\n"))
		paragraphBuf = nil
		if text == "" {
			return
		}
		result = append(result, research.Block{
			ID:      blockID(text, ordinal),
			Type:    "paragraph",
			Content: text,
		})
		ordinal++
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")

		if strings.TrimSpace(trimmed) == "" {
			flushParagraph()
			continue
		}

		if m := headingRe.FindStringSubmatch(trimmed); m != nil {
			flushParagraph()
			level := len(m[1])
			text := strings.TrimSpace(m[2])
			result = append(result, research.Block{
				ID:      blockID(text, ordinal),
				Type:    "heading",
				Content: text,
				Metadata: map[string]string{
					"level": strconv.Itoa(level),
				},
			})
			ordinal++
			continue
		}

		stripped := strings.TrimSpace(trimmed)
		if strings.HasPrefix(stripped, "- ") || strings.HasPrefix(stripped, "* ") || orderedListRe.MatchString(stripped) {
			flushParagraph()
			text := stripListMarker(stripped)
			result = append(result, research.Block{
				ID:      blockID(text, ordinal),
				Type:    "list_item",
				Content: text,
			})
			ordinal++
			continue
		}

		paragraphBuf = append(paragraphBuf, trimmed)
	}
	flushParagraph()

	if result == nil {
		return []research.Block{}
	}
	return result
}

func stripListMarker(line string) string {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:])
	}
	if loc := orderedListRe.FindStringIndex(line); loc != nil {
		return strings.TrimSpace(line[loc[1]:])
	}
	return line
}

// blockID derives a deterministic id from content and ordinal position
// within the Result, per spec.md §4.7.
func blockID(content string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", ordinal, content)))
	return hex.EncodeToString(sum[:])[:12]
}
