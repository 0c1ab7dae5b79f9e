package table

import (
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	bulkerr "github.com/matzehuels/bulkstat/pkg/errors"
)

// Compression selects how delimited content is decoded before parsing.
type Compression int

const (
	None Compression = iota
	Gzip
	Bzip2
	Zip
	// Infer sniffs the magic bytes and falls back to None.
	Infer
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Zip:
		return "zip"
	case Infer:
		return "infer"
	}
	return fmt.Sprintf("compression(%d)", int(c))
}

// ParseCompression maps a name or file extension ("gz", "bz2", "zip") to
// a Compression. The empty string is None.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "none":
		return None, nil
	case "gz", "gzip":
		return Gzip, nil
	case "bz2", "bzip2":
		return Bzip2, nil
	case "zip":
		return Zip, nil
	case "infer":
		return Infer, nil
	}
	return None, bulkerr.New(bulkerr.ErrCodeConfig, "unknown compression %q", s)
}

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicZip   = []byte("PK\x03\x04")
)

func sniff(content []byte) Compression {
	switch {
	case bytes.HasPrefix(content, magicGzip):
		return Gzip
	case bytes.HasPrefix(content, magicBzip2):
		return Bzip2
	case bytes.HasPrefix(content, magicZip):
		return Zip
	}
	return None
}

// Decompress returns the decoded content. A zip archive yields its first
// regular file.
func Decompress(content []byte, c Compression) ([]byte, error) {
	if c == Infer {
		c = sniff(content)
	}
	var r io.Reader
	switch c {
	case None:
		return content, nil
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(content))
		if err != nil {
			return nil, bulkerr.Wrap(bulkerr.ErrCodeParse, err, "open gzip stream")
		}
		defer zr.Close()
		r = zr
	case Bzip2:
		r = bzip2.NewReader(bytes.NewReader(content))
	case Zip:
		zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return nil, bulkerr.Wrap(bulkerr.ErrCodeParse, err, "open zip archive")
		}
		var f *zip.File
		for _, candidate := range zr.File {
			if !candidate.FileInfo().IsDir() {
				f = candidate
				break
			}
		}
		if f == nil {
			return nil, bulkerr.New(bulkerr.ErrCodeParse, "zip archive contains no files")
		}
		rc, err := f.Open()
		if err != nil {
			return nil, bulkerr.Wrap(bulkerr.ErrCodeParse, err, "open %s in zip archive", f.Name)
		}
		defer rc.Close()
		r = rc
	default:
		return nil, bulkerr.New(bulkerr.ErrCodeConfig, "unknown compression %s", c)
	}

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, bulkerr.Wrap(bulkerr.ErrCodeParse, err, "decompress %s content", c)
	}
	return out, nil
}
