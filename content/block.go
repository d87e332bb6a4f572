// Package content models the body of a trend: an ordered list of typed
// blocks. Each variant carries only the fields that make sense for it, and
// the list order is the reading order.
package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is the wire tag of a block.
type Kind string

const (
	KindParagraph Kind = "paragraph"
	KindImage     Kind = "image"
	KindVideo     Kind = "video"
	KindXEmbed    Kind = "x-embed"
)

// Block is one unit of an article body. The concrete types are Paragraph,
// Image, Video and XEmbed.
type Block interface {
	Kind() Kind
	Heading() string
	Value() string
	isBlock()
}

// Paragraph is body text with an optional illustrative image. Text may carry
// inline links in the [text](url) form.
type Paragraph struct {
	Title string
	Text  string
	Image string
}

// Image is a standalone picture.
type Image struct {
	Title   string
	Src     string
	Caption string
}

// Video is an embeddable video URL.
type Video struct {
	Title   string
	URL     string
	Caption string
}

// XEmbed references a post on X (Twitter).
type XEmbed struct {
	Title string
	URL   string
}

func (Paragraph) Kind() Kind { return KindParagraph }
func (Image) Kind() Kind     { return KindImage }
func (Video) Kind() Kind     { return KindVideo }
func (XEmbed) Kind() Kind    { return KindXEmbed }

func (b Paragraph) Heading() string { return b.Title }
func (b Image) Heading() string     { return b.Title }
func (b Video) Heading() string     { return b.Title }
func (b XEmbed) Heading() string    { return b.Title }

func (b Paragraph) Value() string { return b.Text }
func (b Image) Value() string     { return b.Src }
func (b Video) Value() string     { return b.URL }
func (b XEmbed) Value() string    { return b.URL }

func (Paragraph) isBlock() {}
func (Image) isBlock()     {}
func (Video) isBlock()     {}
func (XEmbed) isBlock()    {}

// Content is the ordered body of a trend.
type Content []Block

// Default is the body stored when no usable block was submitted.
func Default() Content {
	return Content{Paragraph{}}
}

// wire is the JSON shape shared by all variants.
type wire struct {
	Type    Kind   `json:"type"`
	Title   string `json:"title"`
	Value   string `json:"value"`
	Image   string `json:"image,omitempty"`
	Caption string `json:"caption,omitempty"`
}

func toWire(b Block) wire {
	switch v := b.(type) {
	case Paragraph:
		return wire{Type: KindParagraph, Title: v.Title, Value: v.Text, Image: v.Image}
	case Image:
		return wire{Type: KindImage, Title: v.Title, Value: v.Src, Caption: v.Caption}
	case Video:
		return wire{Type: KindVideo, Title: v.Title, Value: v.URL, Caption: v.Caption}
	case XEmbed:
		return wire{Type: KindXEmbed, Title: v.Title, Value: v.URL}
	}
	return wire{}
}

func fromWire(w wire) (Block, error) {
	switch Kind(strings.TrimSpace(string(w.Type))) {
	case KindParagraph:
		return Paragraph{Title: w.Title, Text: w.Value, Image: w.Image}, nil
	case KindImage:
		return Image{Title: w.Title, Src: w.Value, Caption: w.Caption}, nil
	case KindVideo:
		return Video{Title: w.Title, URL: w.Value, Caption: w.Caption}, nil
	case KindXEmbed:
		return XEmbed{Title: w.Title, URL: w.Value}, nil
	case "":
		return nil, fmt.Errorf("missing block type")
	default:
		return nil, fmt.Errorf("unknown block type %q", w.Type)
	}
}

// Parse decodes a JSON array of block descriptors. Invalid JSON and unknown
// block types are errors; nothing is dropped silently.
func Parse(data []byte) (Content, error) {
	var ws []wire
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("invalid content JSON: %w", err)
	}
	out := make(Content, 0, len(ws))
	for i, w := range ws {
		b, err := fromWire(w)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// MarshalJSON encodes c in the wire form. A nil Content encodes as [].
func (c Content) MarshalJSON() ([]byte, error) {
	ws := make([]wire, 0, len(c))
	for _, b := range c {
		if b == nil {
			continue
		}
		ws = append(ws, toWire(b))
	}
	return json.Marshal(ws)
}

// UnmarshalJSON decodes the wire form with the same rules as Parse.
func (c *Content) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Normalize drops blocks with a blank value, cleans pasted HTML out of
// paragraph text and substitutes Default when nothing is left. Order is kept.
func Normalize(c Content) Content {
	out := make(Content, 0, len(c))
	for _, b := range c {
		if b == nil || strings.TrimSpace(b.Value()) == "" {
			continue
		}
		if p, ok := b.(Paragraph); ok {
			p.Text = CleanText(p.Text)
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			b = p
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return Default()
	}
	return out
}
