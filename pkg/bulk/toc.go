package bulk

import (
	"context"
	"strings"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
	"github.com/matzehuels/bulkstat/pkg/table"
)

// ContentsEntry is one line of the table of contents.
type ContentsEntry struct {
	Title      string
	Code       string
	Type       string // "folder", "dataset" or "table"
	LastUpdate string
	LastChange string
	Start      string
	End        string
}

// Contents is the parsed table of contents, indexed by code.
type Contents struct {
	entries []ContentsEntry
	byCode  map[string]int
}

// NewContents indexes entries. A code listed more than once (a dataset filed under
// several themes) keeps its first entry.
func NewContents(entries []ContentsEntry) *Contents {
	t := &Contents{entries: entries, byCode: make(map[string]int, len(entries))}
	for i, e := range entries {
		if _, dup := t.byCode[e.Code]; !dup {
			t.byCode[e.Code] = i
		}
	}
	return t
}

// Len returns the number of entries, duplicates included.
func (t *Contents) Len() int { return len(t.entries) }

// Entries returns every entry in file order.
func (t *Contents) Entries() []ContentsEntry { return append([]ContentsEntry(nil), t.entries...) }

// Entry returns the entry for code, or NOT_FOUND.
func (t *Contents) Entry(code string) (ContentsEntry, error) {
	i, ok := t.byCode[code]
	if !ok {
		return ContentsEntry{}, bulkerr.New(bulkerr.ErrCodeNotFound, "%q not in table of contents", code)
	}
	return t.entries[i], nil
}

// Title returns the title of code.
func (t *Contents) Title(code string) (string, error) {
	e, err := t.Entry(code)
	return e.Title, err
}

// Period returns the first and last period covered by code.
func (t *Contents) Period(code string) (start, end string, err error) {
	e, err := t.Entry(code)
	return e.Start, e.End, err
}

// TableOfContents downloads the text table of contents in the client's
// language.
func (c *Client) TableOfContents(ctx context.Context) (*Contents, error) {
	body, err := c.Get(ctx, TOC, "", "txt")
	if err != nil {
		return nil, err
	}
	return ParseTOC(body, func(line int, err error) {
		c.logger.Debug("skipping table of contents line", "line", line, "err", err)
	})
}

// ParseTOC parses a tab-separated table of contents with a header row.
// Trailing columns such as per-language value counts are ignored, and
// malformed lines are skipped and reported through onSkip.
func ParseTOC(content []byte, onSkip func(line int, err error)) (*Contents, error) {
	rows, err := table.ParseDelimited(content, table.DelimitedOptions{
		Compression: table.Infer,
		Header:      true,
		Lenient:     true,
		OnSkip:      onSkip,
	})
	if err != nil {
		return nil, err
	}
	l := DefaultTopology()[TOC]
	if len(rows) > 0 {
		cols := rows[0].Columns()
		for _, want := range l.Columns[:2] {
			if !containsFold(cols, want) {
				return nil, bulkerr.New(bulkerr.ErrCodeParse, "table of contents has no %q column", want)
			}
		}
	}

	entries := make([]ContentsEntry, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]string, r.Len())
		for k, v := range r.Map() {
			m[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
		entries = append(entries, ContentsEntry{
			Title:      m["title"],
			Code:       m["code"],
			Type:       m["type"],
			LastUpdate: m["last update of data"],
			LastChange: m["last table structure change"],
			Start:      m["data start"],
			End:        m["data end"],
		})
	}
	return NewContents(entries), nil
}

func containsFold(cols []string, want string) bool {
	for _, c := range cols {
		if strings.EqualFold(strings.TrimSpace(c), want) {
			return true
		}
	}
	return false
}
