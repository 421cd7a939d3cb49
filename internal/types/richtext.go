package types

import (
	"encoding/json"
	"strings"
)

// Rich text node types.
const (
	NodeParagraph    = "paragraph"
	NodeBulletedList = "bulleted-list"
	NodeNumberedList = "numbered-list"
	NodeListItem     = "list-item"
	NodeLink         = "link"
)

// RichText is an ordered list of block nodes produced by the editor.
type RichText []RichTextNode

// RichTextNode is either an element (Type set, Children populated) or a
// text leaf (Type empty, Text and the inline marks set).
type RichTextNode struct {
	Type     string         `json:"type,omitempty" yaml:"type,omitempty"`
	URL      string         `json:"url,omitempty" yaml:"url,omitempty"`
	Children []RichTextNode `json:"children,omitempty" yaml:"children,omitempty"`
	Text     string         `json:"text,omitempty" yaml:"text,omitempty"`
	Bold     bool           `json:"bold,omitempty" yaml:"bold,omitempty"`
	Italic   bool           `json:"italic,omitempty" yaml:"italic,omitempty"`
}

// IsText reports whether the node is a text leaf.
func (n RichTextNode) IsText() bool {
	return n.Type == ""
}

// MarshalJSON keeps the editor's wire shape: leaves always carry "text" and
// never "children", elements always carry "children".
func (n RichTextNode) MarshalJSON() ([]byte, error) {
	if n.IsText() {
		return json.Marshal(struct {
			Text   string `json:"text"`
			Bold   bool   `json:"bold,omitempty"`
			Italic bool   `json:"italic,omitempty"`
		}{n.Text, n.Bold, n.Italic})
	}
	children := n.Children
	if children == nil {
		children = []RichTextNode{}
	}
	return json.Marshal(struct {
		Type     string         `json:"type"`
		URL      string         `json:"url,omitempty"`
		Children []RichTextNode `json:"children"`
	}{n.Type, n.URL, children})
}

// PlainText flattens the content, joining top-level blocks with newlines.
func (rt RichText) PlainText() string {
	parts := make([]string, 0, len(rt))
	for _, node := range rt {
		parts = append(parts, node.plainText())
	}
	return strings.Join(parts, "\n")
}

func (n RichTextNode) plainText() string {
	if n.IsText() {
		return n.Text
	}
	var sb strings.Builder
	for _, child := range n.Children {
		sb.WriteString(child.plainText())
	}
	return sb.String()
}

// IsEmpty reports whether the content has no visible text.
func (rt RichText) IsEmpty() bool {
	return strings.TrimSpace(rt.PlainText()) == ""
}

// Clone returns a deep copy.
func (rt RichText) Clone() RichText {
	if rt == nil {
		return nil
	}
	out := make(RichText, len(rt))
	for i, node := range rt {
		out[i] = node.clone()
	}
	return out
}

func (n RichTextNode) clone() RichTextNode {
	if n.Children != nil {
		children := make([]RichTextNode, len(n.Children))
		for i, child := range n.Children {
			children[i] = child.clone()
		}
		n.Children = children
	}
	return n
}

// Paragraph is a convenience constructor for a single-paragraph block.
func Paragraph(text string) RichTextNode {
	return RichTextNode{Type: NodeParagraph, Children: []RichTextNode{{Text: text}}}
}
