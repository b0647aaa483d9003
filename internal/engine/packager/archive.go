package packager

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"pybundle/internal/core/errors"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Compression selects the container codec once per run.
type Compression string

const (
	CompressionNone    Compression = "none"
	CompressionDeflate Compression = "deflate"
	CompressionBzip2   Compression = "bzip2"
	CompressionLZMA    Compression = "lzma"
)

// ZIP method IDs from APPNOTE 4.4.5.
const (
	methodBzip2 uint16 = 12
	methodLZMA  uint16 = 14
)

var compressions = []Compression{CompressionNone, CompressionDeflate, CompressionBzip2, CompressionLZMA}

// ParseCompression accepts a codec name, case-insensitively.
func ParseCompression(s string) (Compression, error) {
	c := Compression(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range compressions {
		if c == known {
			return c, nil
		}
	}
	names := make([]string, len(compressions))
	for i, known := range compressions {
		names[i] = string(known)
	}
	return "", errors.Newf(errors.CodeConfiguration, "unknown compression %q (want one of: %s)", s, strings.Join(names, ", "))
}

func (c Compression) method() uint16 {
	switch c {
	case CompressionNone:
		return zip.Store
	case CompressionBzip2:
		return methodBzip2
	case CompressionLZMA:
		return methodLZMA
	}
	return zip.Deflate
}

// Fixed timestamp so identical inputs produce identical containers.
var entryTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// BuildContainer writes files into a ZIP container in the given order.
func BuildContainer(files []file, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	registerCompressors(zw)

	method := c.method()
	for _, f := range files {
		header := &zip.FileHeader{
			Name:     f.placement,
			Method:   method,
			Modified: entryTime,
		}
		header.SetMode(filePerm)
		if method == methodLZMA {
			header.Flags |= lzmaEOSFlag
		}

		w, err := zw.CreateHeader(header)
		if err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodePackaging, "create container entry"),
				errors.CtxPlacement, f.placement,
			)
		}
		if _, err := w.Write(f.data); err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodePackaging, "write container entry"),
				errors.CtxPlacement, f.placement,
			)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CodePackaging, "finish container")
	}
	return buf.Bytes(), nil
}

func registerCompressors(zw *zip.Writer) {
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})
	zw.RegisterCompressor(methodBzip2, func(w io.Writer) (io.WriteCloser, error) {
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.BestCompression})
	})
	zw.RegisterCompressor(methodLZMA, newLZMAWriter)
}

func registerDecompressors(zr *zip.Reader) {
	zr.RegisterDecompressor(zip.Deflate, flate.NewReader)
	zr.RegisterDecompressor(methodBzip2, func(r io.Reader) io.ReadCloser {
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return errReadCloser{err}
		}
		return br
	})
	zr.RegisterDecompressor(methodLZMA, newLZMAReader)
}

// VerifyContainer reopens a container and reads every entry back.
func VerifyContainer(container []byte, wantEntries int) error {
	zr, err := zip.NewReader(bytes.NewReader(container), int64(len(container)))
	if err != nil {
		return errors.Wrap(err, errors.CodePackaging, "reopen container")
	}
	registerDecompressors(zr)

	if len(zr.File) != wantEntries {
		return errors.Newf(errors.CodePackaging, "container holds %d entries, want %d", len(zr.File), wantEntries)
	}
	for _, f := range zr.File {
		if err := readEntry(f); err != nil {
			return errors.AddContext(
				errors.Wrap(err, errors.CodePackaging, "verify container entry"),
				errors.CtxPlacement, f.Name,
			)
		}
	}
	return nil
}

func readEntry(f *zip.File) (err error) {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	n, err := io.Copy(io.Discard, rc)
	if err != nil {
		return err
	}
	if uint64(n) != f.UncompressedSize64 {
		return fmt.Errorf("read %d bytes, header says %d", n, f.UncompressedSize64)
	}
	return nil
}

type errReadCloser struct{ err error }

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error             { return nil }
