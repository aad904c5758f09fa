// Package source opens log files as forward-only line streams. Compressed
// files are decompressed transparently and malformed UTF-8 is replaced
// rather than aborting the read.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Compression identifies the on-disk encoding of a log file.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// File is an opened log file. Close releases the underlying handle and any
// decompressor.
type File struct {
	Path        string
	Size        int64
	Compression Compression

	f       *os.File
	closers []func() error
	r       io.Reader
}

// Open opens path for streaming. The returned error wraps the os error, so
// errors.Is(err, fs.ErrNotExist) identifies a missing file.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: is a directory", path)
	}

	lf := &File{Path: path, Size: info.Size(), Compression: CompressionNone, f: f}

	br := bufio.NewReaderSize(f, 64*1024)
	head, _ := br.Peek(len(zstdMagic))

	var raw io.Reader = br
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		lf.Compression = CompressionGzip
		lf.closers = append(lf.closers, zr.Close)
		raw = zr
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		lf.Compression = CompressionZstd
		lf.closers = append(lf.closers, func() error { zr.Close(); return nil })
		raw = zr
	}

	// UTF8BOM strips a leading byte order mark; both decoders replace
	// invalid sequences with U+FFFD.
	lf.r = transform.NewReader(raw, unicode.UTF8BOM.NewDecoder())
	return lf, nil
}

// Lines returns a reader over the file's lines. It must be called at most once.
func (lf *File) Lines() *Reader {
	return NewReader(lf.r)
}

// Close releases the file.
func (lf *File) Close() error {
	var errs []error
	for i := len(lf.closers) - 1; i >= 0; i-- {
		if err := lf.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := lf.f.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Reader yields lines one at a time with 1-based line numbers. Lines of any
// length are supported; the trailing "\n" or "\r\n" is removed.
type Reader struct {
	br   *bufio.Reader
	line string
	n    int
	err  error
	done bool
}

// NewReader wraps r without any decoding.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next line. It returns false at end of input or on
// error; Err distinguishes the two.
func (r *Reader) Next() bool {
	if r.done {
		return false
	}
	s, err := r.br.ReadString('\n')
	if err != nil {
		r.done = true
		if err != io.EOF {
			r.err = err
			return false
		}
		if s == "" {
			return false
		}
	}
	r.n++
	r.line = strings.TrimRight(s, "\r\n")
	return true
}

// Text returns the current line.
func (r *Reader) Text() string { return r.line }

// Number returns the 1-based number of the current line.
func (r *Reader) Number() int { return r.n }

// Err returns the first non-EOF error.
func (r *Reader) Err() error { return r.err }

// Sample returns at most n leading lines of path.
func Sample(path string, n int) ([]string, error) {
	lf, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer lf.Close()

	lines := make([]string, 0, n)
	r := lf.Lines()
	for len(lines) < n && r.Next() {
		lines = append(lines, r.Text())
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("sample %s: %w", path, err)
	}
	return lines, nil
}
