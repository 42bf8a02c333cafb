package extract

import (
	"errors"
	"fmt"
	"strings"
)

// Record field separator and the placeholder written when no identifier
// could be read from a child.
const (
	Sep       = "\n"
	UnknownID = "UNKNOWNID"
)

// ErrBadRecord is returned by ParseRecord for text that is not a record.
var ErrBadRecord = errors.New("extract: malformed record")

// Record is what one ready child yields.
type Record struct {
	Tag   string `json:"tag"`
	ID    string `json:"id"`
	HasID bool   `json:"has_id"`
	Text  string `json:"text"`
	// Index is the child position under the anchor.
	Index int `json:"index"`
}

// String renders the line-separated form: tag, identifier (or UnknownID),
// then the rendered text. The text may itself span several lines.
func (r Record) String() string {
	id := r.ID
	if !r.HasID || id == "" {
		id = UnknownID
	}
	return r.Tag + Sep + id + Sep + r.Text
}

// ParseRecord reads back a rendered record. The identifier line equal to
// UnknownID gives HasID=false. Index is not part of the text form.
func ParseRecord(s string) (Record, error) {
	tag, rest, ok := strings.Cut(s, Sep)
	if !ok || tag == "" {
		return Record{}, fmt.Errorf("%w: no tag line", ErrBadRecord)
	}
	id, text, ok := strings.Cut(rest, Sep)
	if !ok || id == "" {
		return Record{}, fmt.Errorf("%w: no id line", ErrBadRecord)
	}
	r := Record{Tag: tag, Text: text}
	if id != UnknownID {
		r.ID, r.HasID = id, true
	}
	return r, nil
}

// Strings renders every record, in order.
func Strings(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.String()
	}
	return out
}

// Join concatenates the rendered text of every record, each prefixed with
// sep. With sep "______" this is the dictionary flow's delivery format.
func Join(recs []Record, sep string) string {
	var b strings.Builder
	for _, r := range recs {
		b.WriteString(sep)
		b.WriteString(r.Text)
	}
	return b.String()
}
