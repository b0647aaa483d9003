package packager

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// An LZMA entry (method 14) starts with a 4-byte preamble: the LZMA SDK
// version and the size of the properties block that follows. The stream
// after the properties carries no size field and ends with an EOS marker,
// which general purpose flag bit 1 announces.
const (
	lzmaEOSFlag        = 0x2
	lzmaPropsLen       = 5
	classicHeaderLen   = 13
	lzmaVersionMajor   = 9
	lzmaVersionMinor   = 20
	lzmaPreambleLength = 4
)

func lzmaPreamble(props []byte) []byte {
	out := make([]byte, 0, lzmaPreambleLength+len(props))
	out = append(out, lzmaVersionMajor, lzmaVersionMinor)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(props)))
	return append(out, props...)
}

// newLZMAWriter is the zip.Compressor for method 14. The library emits the
// classic 13-byte .lzma header; headerRewriter swaps it for the ZIP form.
func newLZMAWriter(w io.Writer) (io.WriteCloser, error) {
	hw := &headerRewriter{dst: w}
	cfg := lzma.WriterConfig{SizeInHeader: false, EOSMarker: true}
	lw, err := cfg.NewWriter(hw)
	if err != nil {
		return nil, fmt.Errorf("lzma writer: %w", err)
	}
	return &lzmaWriter{lw: lw, hw: hw}, nil
}

type lzmaWriter struct {
	lw *lzma.Writer
	hw *headerRewriter
}

func (w *lzmaWriter) Write(p []byte) (int, error) {
	return w.lw.Write(p)
}

func (w *lzmaWriter) Close() error {
	if err := w.lw.Close(); err != nil {
		return err
	}
	if len(w.hw.head) < classicHeaderLen {
		return fmt.Errorf("lzma stream shorter than its header")
	}
	return nil
}

type headerRewriter struct {
	dst  io.Writer
	head []byte
}

func (h *headerRewriter) Write(p []byte) (int, error) {
	n := len(p)
	if len(h.head) < classicHeaderLen {
		take := min(classicHeaderLen-len(h.head), len(p))
		h.head = append(h.head, p[:take]...)
		p = p[take:]
		if len(h.head) == classicHeaderLen {
			if _, err := h.dst.Write(lzmaPreamble(h.head[:lzmaPropsLen])); err != nil {
				return 0, err
			}
		}
	}
	if len(p) > 0 {
		if _, err := h.dst.Write(p); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// newLZMAReader is the zip.Decompressor for method 14. It rebuilds a classic
// header with an unknown size so the library reads up to the EOS marker.
func newLZMAReader(r io.Reader) io.ReadCloser {
	var pre [lzmaPreambleLength]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return errReadCloser{fmt.Errorf("lzma preamble: %w", err)}
	}
	propsLen := int(binary.LittleEndian.Uint16(pre[2:]))
	if propsLen < lzmaPropsLen {
		return errReadCloser{fmt.Errorf("lzma properties too short: %d", propsLen)}
	}
	props := make([]byte, propsLen)
	if _, err := io.ReadFull(r, props); err != nil {
		return errReadCloser{fmt.Errorf("lzma properties: %w", err)}
	}

	header := make([]byte, 0, classicHeaderLen)
	header = append(header, props[:lzmaPropsLen]...)
	header = append(header, bytes.Repeat([]byte{0xff}, classicHeaderLen-lzmaPropsLen)...)

	lr, err := lzma.NewReader(io.MultiReader(bytes.NewReader(header), r))
	if err != nil {
		return errReadCloser{fmt.Errorf("lzma reader: %w", err)}
	}
	return io.NopCloser(lr)
}
