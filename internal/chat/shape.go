package chat

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	BlockParagraph = "paragraph"
	BlockList      = "list"
	BlockTable     = "table"
)

// Block is one presentational unit of an answer.
type Block struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

var (
	sourceMarkerRe = regexp.MustCompile(`\[Source (\d+)\]`)
	boldRe         = regexp.MustCompile(`\*\*(.+?)\*\*`)
	headingRe      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	listLineRe     = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])\s+`)
)

// shapeBlocks normalizes light markdown and classifies the answer into
// paragraph, list and table blocks. Code fences pass through verbatim as
// paragraphs.
func shapeBlocks(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var blocks []Block
	segments := splitKeepingFences(text)
	for _, seg := range segments {
		if seg.fenced {
			content := strings.TrimRight(seg.text, "\n")
			if strings.TrimSpace(content) != "" {
				blocks = append(blocks, Block{Type: BlockParagraph, Content: content})
			}
			continue
		}
		normalized := headingRe.ReplaceAllString(seg.text, "")
		normalized = boldRe.ReplaceAllString(normalized, "$1")
		for _, para := range strings.Split(normalized, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			blocks = append(blocks, classifyBlock(para))
		}
	}
	return blocks
}

func classifyBlock(para string) Block {
	lines := strings.Split(para, "\n")

	tableRows := 0
	listLines := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2 {
			tableRows++
		}
		if listLineRe.MatchString(line) {
			listLines++
		}
	}
	switch {
	case tableRows >= 2 && tableRows == countNonEmpty(lines):
		return Block{Type: BlockTable, Content: para}
	case listLines > 0 && listLines == countNonEmpty(lines):
		return Block{Type: BlockList, Content: para}
	default:
		return Block{Type: BlockParagraph, Content: para}
	}
}

func countNonEmpty(lines []string) int {
	n := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}

type segment struct {
	text   string
	fenced bool
}

func splitKeepingFences(text string) []segment {
	var out []segment
	var plain strings.Builder
	var fence strings.Builder
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		isFenceLine := strings.HasPrefix(strings.TrimSpace(line), "```")
		switch {
		case isFenceLine && !inFence:
			if plain.Len() > 0 {
				out = append(out, segment{text: plain.String()})
				plain.Reset()
			}
			inFence = true
			fence.WriteString(line)
			fence.WriteString("\n")
		case isFenceLine && inFence:
			fence.WriteString(line)
			out = append(out, segment{text: fence.String(), fenced: true})
			fence.Reset()
			inFence = false
		case inFence:
			fence.WriteString(line)
			fence.WriteString("\n")
		default:
			plain.WriteString(line)
			plain.WriteString("\n")
		}
	}
	if inFence && fence.Len() > 0 {
		// Unclosed fence, keep what we have.
		out = append(out, segment{text: fence.String(), fenced: true})
	}
	if plain.Len() > 0 {
		out = append(out, segment{text: plain.String()})
	}
	return out
}

// referencedSources returns the distinct [Source N] numbers cited in the
// answer, in first-mention order.
func referencedSources(text string) []int {
	var out []int
	seen := map[int]bool{}
	for _, m := range sourceMarkerRe.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
