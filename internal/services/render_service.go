package services

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"wisatachat/internal/logger"
	"wisatachat/pkg/wisatatypes"
)

// maxCards is the number of recommendation cards shown per reply. The
// backend sends up to four; the display keeps three.
const maxCards = 3

// RenderService turns raw assistant payloads into display-ready content.
// Compose builds a typed display tree from a constrained markup subset
// (bold, italics, links, and list items) in which markup is only ever data:
// links are carried as inert hrefs and nothing from the payload is executed.
// Malformed markup degrades to plain text; building the tree cannot fail.
//
// RenderAnswer is the separate terminal materialization through glamour and
// fails soft to the raw text.
type RenderService struct {
	initialized bool
	renderer    *glamour.TermRenderer
}

// NewRenderService creates a new RenderService instance.
func NewRenderService() *RenderService {
	return &RenderService{}
}

// Name returns the service name "render" for registration.
func (r *RenderService) Name() string {
	return "render"
}

// Initialize sets up the glamour renderer, picking a plain style when the
// terminal reports no color support.
func (r *RenderService) Initialize() error {
	style := glamour.WithAutoStyle()
	if termenv.EnvColorProfile() == termenv.Ascii {
		style = glamour.WithStandardStyle("notty")
	}

	renderer, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	r.renderer = renderer
	r.initialized = true
	return nil
}

// Compose builds the display tree for one assistant payload. Source chips
// keep payload order; cards keep payload order here, since same-category
// shuffling is an explicit separate step (ShuffleCards) so callers control
// the seed.
func (r *RenderService) Compose(answer string, sources []string, cards []wisatatypes.PlaceRef) wisatatypes.RenderedMessage {
	rendered := wisatatypes.RenderedMessage{
		Blocks:  parseBlocks(answer),
		Sources: append([]string(nil), sources...),
	}
	if len(cards) > 0 {
		rendered.Cards = append([]wisatatypes.PlaceRef(nil), cards...)
	}
	return rendered
}

// ShuffleCards permutes cards that share a category (seeded, so tests are
// deterministic) and truncates to the display limit. Positions keep their
// category: only cards of the same category trade places.
func ShuffleCards(cards []wisatatypes.PlaceRef, seed int64) []wisatatypes.PlaceRef {
	out := append([]wisatatypes.PlaceRef(nil), cards...)
	rng := rand.New(rand.NewSource(seed))

	byCategory := make(map[string][]int)
	for i, card := range out {
		byCategory[card.Category] = append(byCategory[card.Category], i)
	}
	for _, positions := range byCategory {
		if len(positions) < 2 {
			continue
		}
		picked := make([]wisatatypes.PlaceRef, len(positions))
		for i, pos := range positions {
			picked[i] = out[pos]
		}
		rng.Shuffle(len(picked), func(i, j int) {
			picked[i], picked[j] = picked[j], picked[i]
		})
		for i, pos := range positions {
			out[pos] = picked[i]
		}
	}

	if len(out) > maxCards {
		out = out[:maxCards]
	}
	return out
}

// RenderAnswer renders the raw answer markdown to ANSI terminal output,
// falling back to the raw text when rendering fails. A render failure never
// aborts a turn.
func (r *RenderService) RenderAnswer(answer string) string {
	if !r.initialized || r.renderer == nil {
		return answer
	}
	out, err := r.renderer.Render(answer)
	if err != nil {
		logger.Debug("Markdown rendering failed, using raw text", "error", err)
		return answer
	}
	return out
}

// RenderView materializes a composed display tree for the terminal. The
// blocks are serialized back into the constrained subset and rendered
// through glamour; without a renderer the tree's plain text is used.
func (r *RenderService) RenderView(view wisatatypes.RenderedMessage) string {
	if !r.initialized || r.renderer == nil {
		return plainView(view.Blocks)
	}
	return r.RenderAnswer(blocksMarkdown(view.Blocks))
}

// plainView flattens the tree to unstyled text, list markers included.
func plainView(blocks []wisatatypes.Block) string {
	lines := make([]string, 0, len(blocks))
	for _, block := range blocks {
		text := block.PlainText()
		if block.Kind == wisatatypes.BlockListItem {
			text = "- " + text
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// blocksMarkdown serializes the tree back to the constrained subset. The
// parse already degraded anything malformed to plain spans, so this is a
// lossless round trip for the subset.
func blocksMarkdown(blocks []wisatatypes.Block) string {
	lines := make([]string, 0, len(blocks))
	for _, block := range blocks {
		var line strings.Builder
		if block.Kind == wisatatypes.BlockListItem {
			line.WriteString("- ")
		}
		for _, span := range block.Spans {
			switch span.Kind {
			case wisatatypes.SpanBold:
				line.WriteString("**" + span.Text + "**")
			case wisatatypes.SpanItalic:
				line.WriteString("*" + span.Text + "*")
			case wisatatypes.SpanLink:
				line.WriteString("[" + span.Text + "](" + span.Href + ")")
			default:
				line.WriteString(span.Text)
			}
		}
		lines = append(lines, line.String(), "")
	}
	return strings.TrimSuffix(strings.Join(lines, "\n"), "\n")
}

// parseBlocks splits the answer into paragraph and list-item blocks and
// parses each through the inline subset.
func parseBlocks(answer string) []wisatatypes.Block {
	var blocks []wisatatypes.Block
	var paragraph []string

	flush := func() {
		if len(paragraph) == 0 {
			return
		}
		text := strings.Join(paragraph, " ")
		paragraph = nil
		blocks = append(blocks, wisatatypes.Block{
			Kind:  wisatatypes.BlockParagraph,
			Spans: parseSpans(text),
		})
	}

	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case isListItem(trimmed):
			flush()
			blocks = append(blocks, wisatatypes.Block{
				Kind:  wisatatypes.BlockListItem,
				Spans: parseSpans(stripListMarker(trimmed)),
			})
		default:
			paragraph = append(paragraph, trimmed)
		}
	}
	flush()

	return blocks
}

// isListItem recognizes the bullet and numbered list markers of the subset.
func isListItem(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return true
	}
	return numberedPrefixLen(line) > 0
}

// numberedPrefixLen returns the length of a "12. " style marker, or 0.
func numberedPrefixLen(line string) int {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(line) || line[i] != '.' || line[i+1] != ' ' {
		return 0
	}
	return i + 2
}

func stripListMarker(line string) string {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		return strings.TrimSpace(line[2:])
	}
	if n := numberedPrefixLen(line); n > 0 {
		return strings.TrimSpace(line[n:])
	}
	return line
}

// parseSpans parses the inline subset: **bold**, *italic* or _italic_, and
// [label](href). Unterminated or empty markup falls through as plain text.
func parseSpans(text string) []wisatatypes.Span {
	var spans []wisatatypes.Span
	var plain strings.Builder

	flushPlain := func() {
		if plain.Len() == 0 {
			return
		}
		spans = append(spans, wisatatypes.Span{Kind: wisatatypes.SpanPlain, Text: plain.String()})
		plain.Reset()
	}

	i := 0
	for i < len(text) {
		switch {
		case strings.HasPrefix(text[i:], "**"):
			end := strings.Index(text[i+2:], "**")
			if end <= 0 {
				plain.WriteString("**")
				i += 2
				continue
			}
			flushPlain()
			spans = append(spans, wisatatypes.Span{Kind: wisatatypes.SpanBold, Text: text[i+2 : i+2+end]})
			i += end + 4
		case text[i] == '*' || text[i] == '_':
			marker := text[i]
			end := strings.IndexByte(text[i+1:], marker)
			if end <= 0 {
				plain.WriteByte(marker)
				i++
				continue
			}
			flushPlain()
			spans = append(spans, wisatatypes.Span{Kind: wisatatypes.SpanItalic, Text: text[i+1 : i+1+end]})
			i += end + 2
		case text[i] == '[':
			label, href, consumed := parseLink(text[i:])
			if consumed == 0 {
				plain.WriteByte('[')
				i++
				continue
			}
			flushPlain()
			spans = append(spans, wisatatypes.Span{Kind: wisatatypes.SpanLink, Text: label, Href: href})
			i += consumed
		default:
			plain.WriteByte(text[i])
			i++
		}
	}
	flushPlain()

	return spans
}

// parseLink parses a leading "[label](href)" and returns how much of text it
// consumed, or 0 when the shape is incomplete.
func parseLink(text string) (label, href string, consumed int) {
	closeBracket := strings.IndexByte(text, ']')
	if closeBracket <= 1 || closeBracket+1 >= len(text) || text[closeBracket+1] != '(' {
		return "", "", 0
	}
	closeParen := strings.IndexByte(text[closeBracket+2:], ')')
	if closeParen < 0 {
		return "", "", 0
	}
	label = text[1:closeBracket]
	href = text[closeBracket+2 : closeBracket+2+closeParen]
	return label, href, closeBracket + closeParen + 3
}
