package xmltv

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"

	apperrors "github.com/glefebvre/guidepost/internal/errors"
)

// Compression names the container format detected on a feed
type Compression string

const (
	CompressionNone  Compression = "none"
	CompressionGzip  Compression = "gzip"
	CompressionBzip2 Compression = "bzip2"
	CompressionXZ    Compression = "xz"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// DetectCompression sniffs magic bytes at the start of a feed
func DetectCompression(header []byte) Compression {
	switch {
	case bytes.HasPrefix(header, gzipMagic):
		return CompressionGzip
	case bytes.HasPrefix(header, bzip2Magic):
		return CompressionBzip2
	case bytes.HasPrefix(header, xzMagic):
		return CompressionXZ
	default:
		return CompressionNone
	}
}

// Decompress wraps r so that gzip, bzip2 and xz feeds read as plain XML
func Decompress(r io.Reader) (io.Reader, Compression, error) {
	br := bufio.NewReader(r)

	header, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, CompressionNone, fmt.Errorf("peeking header: %w", err)
	}

	kind := DetectCompression(header)
	switch kind {
	case CompressionGzip:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return nil, kind, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gzr, kind, nil
	case CompressionBzip2:
		return bzip2.NewReader(br), kind, nil
	case CompressionXZ:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return nil, kind, fmt.Errorf("creating xz reader: %w", err)
		}
		return xzr, kind, nil
	default:
		return br, kind, nil
	}
}

// Feed is an opened, decompressed XMLTV source
type Feed struct {
	io.Reader
	Path        string
	Compression Compression
	closer      io.Closer
}

// Close releases the underlying file
func (f *Feed) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// Open opens a feed file. Failures are FEED_OPEN_ERROR.
func Open(path string) (*Feed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.FeedOpenError(path, err)
	}

	r, kind, err := Decompress(file)
	if err != nil {
		file.Close()
		return nil, apperrors.FeedOpenError(path, err)
	}

	return &Feed{Reader: r, Path: path, Compression: kind, closer: file}, nil
}

// ParseCompressed decompresses r when needed and parses it
func (p *Parser) ParseCompressed(r io.Reader) error {
	plain, _, err := Decompress(r)
	if err != nil {
		return apperrors.FeedOpenError("", err)
	}
	return p.Parse(plain)
}
