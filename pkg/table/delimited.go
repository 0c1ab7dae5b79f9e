package table

import (
	"bufio"
	"bytes"
	"strings"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// DelimitedOptions controls ParseDelimited.
type DelimitedOptions struct {
	// Columns names the fields by position. When empty, Header must be set
	// and the first record names the columns.
	Columns []string

	Compression Compression

	// Comma is the field separator. Zero means tab.
	Comma rune

	// Header skips the first record.
	Header bool

	// Lenient skips malformed records instead of failing.
	Lenient bool

	// OnSkip, if set, is called for every record skipped in lenient mode.
	OnSkip func(line int, err error)
}

// maxLineSize bounds a single record. Metabase lines are short, but TOC
// titles can run long.
const maxLineSize = 1 << 20

// ParseDelimited decodes content and splits it into rows.
//
// Records are newline separated and fields are split on Comma with no quote
// handling, so a stray quote never spans lines. Each record must have
// exactly as many fields as there are columns. A mismatch fails with
// PARSE_ERROR naming the line, unless opts.Lenient is set, in which case the
// record is skipped and reported through OnSkip. Blank lines are ignored.
func ParseDelimited(content []byte, opts DelimitedOptions) ([]Row, error) {
	data, err := Decompress(content, opts.Compression)
	if err != nil {
		return nil, err
	}

	sep := opts.Comma
	if sep == 0 {
		sep = '\t'
	}
	comma := string(sep)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	next := func() ([]string, bool) {
		for sc.Scan() {
			line++
			text := strings.TrimSuffix(sc.Text(), "\r")
			if strings.TrimSpace(text) == "" {
				continue
			}
			return strings.Split(text, comma), true
		}
		return nil, false
	}

	columns := opts.Columns
	if opts.Header {
		header, ok := next()
		if !ok {
			if err := sc.Err(); err != nil {
				return nil, bulkerr.Wrap(bulkerr.ErrCodeParse, err, "read header")
			}
			return nil, bulkerr.New(bulkerr.ErrCodeParse, "delimited content is empty, expected a header")
		}
		if len(columns) == 0 {
			columns = header
		}
	}
	if len(columns) == 0 {
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "no columns given and no header to name them")
	}

	var rows []Row
	for {
		rec, ok := next()
		if !ok {
			break
		}
		if len(rec) != len(columns) {
			err := bulkerr.New(bulkerr.ErrCodeParse,
				"line %d: %d fields, expected %d", line, len(rec), len(columns))
			if opts.Lenient {
				if opts.OnSkip != nil {
					opts.OnSkip(line, err)
				}
				continue
			}
			return nil, err
		}
		rows = append(rows, Row{columns: columns, values: rec})
	}
	if err := sc.Err(); err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeParse, err, "read line %d", line+1)
	}
	return rows, nil
}
