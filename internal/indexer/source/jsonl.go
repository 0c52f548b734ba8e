package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
)

const maxLineSize = 16 << 20

// JSONL reads one JSON object per line. The ref key holds the document id
// (a string or a number), "url" the link target, and every other string
// member becomes a field. Blank lines are skipped.
type JSONL struct {
	path string
	r    io.Reader
	ref  string
}

// NewJSONLFile reads documents from the file at path.
func NewJSONLFile(path, ref string) *JSONL {
	return &JSONL{path: path, ref: ref}
}

// NewJSONL reads documents from r. The reader is consumed by the first Each.
func NewJSONL(r io.Reader, ref string) *JSONL {
	return &JSONL{r: r, ref: ref}
}

func (j *JSONL) Each(ctx context.Context, fn func(Document) error) error {
	r := j.r
	if r == nil {
		f, err := os.Open(j.path)
		if err != nil {
			return fmt.Errorf("opening document file: %w", err)
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		doc, err := j.decode(raw)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading documents: %w", err)
	}
	return nil
}

func (j *JSONL) decode(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return Document{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "decoding document: %v", err)
	}

	doc := Document{Fields: make(map[string]string, len(obj))}
	switch id := obj[j.ref].(type) {
	case string:
		doc.ID = id
	case json.Number:
		doc.ID = id.String()
	}
	if doc.ID == "" {
		return Document{}, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "document has no %q", j.ref)
	}
	for k, v := range obj {
		s, ok := v.(string)
		if !ok || k == j.ref {
			continue
		}
		if k == "url" {
			doc.URL = s
			continue
		}
		doc.Fields[k] = s
	}
	return doc, nil
}
