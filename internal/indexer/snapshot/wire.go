package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf8"
)

// The wire types mirror the searchindex.json layout read by elasticlunr
// based browser widgets. Struct fields are declared in the order the
// widget's own generator writes them.

type wireSnapshot struct {
	DocURLs        []string       `json:"doc_urls"`
	Index          wireIndex      `json:"index"`
	ResultsOptions ResultsOptions `json:"results_options"`
	SearchOptions  SearchOptions  `json:"search_options"`
}

type wireIndex struct {
	DocumentStore wireDocumentStore         `json:"documentStore"`
	Fields        []string                  `json:"fields"`
	Index         map[string]wireFieldIndex `json:"index"`
	Pipeline      []string                  `json:"pipeline"`
	Ref           string                    `json:"ref"`
	Version       string                    `json:"version"`
}

type wireDocumentStore struct {
	DocInfo map[string]map[string]int    `json:"docInfo"`
	Docs    map[string]map[string]string `json:"docs"`
	Length  int                          `json:"length"`
	Save    bool                         `json:"save"`
}

type wireFieldIndex struct {
	Root *wireNode `json:"root"`
}

type wireTF struct {
	TF float64 `json:"tf"`
}

// wireNode is one trie node. On the wire its children are members keyed by
// a single character, next to the "df" and "docs" members.
type wireNode struct {
	DF       int
	Docs     map[string]wireTF
	Children map[rune]*wireNode
}

func newWireNode() *wireNode {
	return &wireNode{Docs: map[string]wireTF{}, Children: map[rune]*wireNode{}}
}

func (n *wireNode) child(r rune) *wireNode {
	c, ok := n.Children[r]
	if !ok {
		c = newWireNode()
		n.Children[r] = c
	}
	return c
}

func (n *wireNode) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *wireNode) encode(buf *bytes.Buffer) error {
	keys := make([]string, 0, len(n.Children)+2)
	keys = append(keys, "df", "docs")
	for r := range n.Children {
		keys = append(keys, string(r))
	}
	slices.Sort(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		switch k {
		case "df":
			buf.WriteString(strconv.Itoa(n.DF))
		case "docs":
			docs, err := json.Marshal(n.Docs)
			if err != nil {
				return err
			}
			buf.Write(docs)
		default:
			r, _ := utf8.DecodeRuneInString(k)
			if err := n.Children[r].encode(buf); err != nil {
				return err
			}
		}
	}
	buf.WriteByte('}')
	return nil
}

func (n *wireNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Docs = map[string]wireTF{}
	n.Children = make(map[rune]*wireNode, len(raw))
	for k, v := range raw {
		switch k {
		case "df":
			if err := json.Unmarshal(v, &n.DF); err != nil {
				return fmt.Errorf("df: %w", err)
			}
		case "docs":
			if err := json.Unmarshal(v, &n.Docs); err != nil {
				return fmt.Errorf("docs: %w", err)
			}
			if n.Docs == nil {
				n.Docs = map[string]wireTF{}
			}
		default:
			// U+FFFD is a legal key: the tokenizer maps invalid UTF-8 to it.
			r, size := utf8.DecodeRuneInString(k)
			if size == 0 || size != len(k) || (r == utf8.RuneError && size == 1) {
				return fmt.Errorf("trie key %q is not a single character", k)
			}
			c := &wireNode{}
			if err := c.UnmarshalJSON(v); err != nil {
				return err
			}
			n.Children[r] = c
		}
	}
	return nil
}
