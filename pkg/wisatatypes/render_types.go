package wisatatypes

// SpanKind classifies one inline run of text inside a rendered block.
type SpanKind string

// Inline span kinds produced by the render pipeline's constrained markup
// subset. Anything outside the subset degrades to SpanPlain.
const (
	SpanPlain  SpanKind = "plain"
	SpanBold   SpanKind = "bold"
	SpanItalic SpanKind = "italic"
	SpanLink   SpanKind = "link"
)

// Span is a run of inline text. Href is set only for SpanLink and is carried
// as inert data: the pipeline never executes or dereferences it.
type Span struct {
	Kind SpanKind
	Text string
	Href string
}

// BlockKind classifies a top-level block in a rendered message.
type BlockKind string

// Block kinds.
const (
	BlockParagraph BlockKind = "paragraph"
	BlockListItem  BlockKind = "list_item"
)

// Block is one display block of an assistant reply.
type Block struct {
	Kind  BlockKind
	Spans []Span
}

// PlainText concatenates the block's span texts without any formatting.
func (b Block) PlainText() string {
	var out string
	for _, s := range b.Spans {
		out += s.Text
	}
	return out
}

// RenderedMessage is the display tree the render pipeline produces for one
// assistant payload: formatted text blocks, citation chips in payload order,
// and recommendation cards. It is pure data; building it cannot fail.
type RenderedMessage struct {
	Blocks  []Block
	Sources []string
	Cards   []PlaceRef
}
