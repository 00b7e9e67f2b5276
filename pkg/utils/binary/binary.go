package binary

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// MaxBytesLen bounds a single length-prefixed field. Anything larger is treated
// as a corrupt record rather than allocated.
const MaxBytesLen = 1 << 28

var ErrInvalidLength = errors.New("invalid length prefix")

type BufferedWriteCloser struct {
	w     *bufio.Writer
	wc    io.WriteCloser
	count int64
}

func NewBufferedWriteCloser(w io.WriteCloser) *BufferedWriteCloser {
	return &BufferedWriteCloser{
		w:  bufio.NewWriter(w),
		wc: w,
	}
}

// Total returns the number of bytes accepted so far, buffered or not.
func (bw *BufferedWriteCloser) Total() int64 {
	return bw.count
}

func (bw *BufferedWriteCloser) Write(p []byte) (n int, err error) {
	n, err = bw.w.Write(p)
	bw.count += int64(n)
	return n, err
}

func (bw *BufferedWriteCloser) Flush() error {
	return bw.w.Flush()
}

func (bw *BufferedWriteCloser) Close() error {
	if err := bw.w.Flush(); err != nil {
		bw.wc.Close()
		return err
	}
	return bw.wc.Close()
}

type BufferedReadCloser struct {
	r  *bufio.Reader
	rc io.Reader
}

func NewBufferedReadCloser(r io.Reader) *BufferedReadCloser {
	return &BufferedReadCloser{
		r:  bufio.NewReader(r),
		rc: r,
	}
}

func (br *BufferedReadCloser) Read(p []byte) (n int, err error) {
	return io.ReadFull(br.r, p)
}

func (br *BufferedReadCloser) Close() error {
	if c, ok := br.rc.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type ByteWriter struct {
	w   io.WriteCloser
	buf [8]byte
}

func NewByteWriter(w io.WriteCloser) *ByteWriter {
	return &ByteWriter{
		w: w,
	}
}

func NewBufferedByteWriter(w io.WriteCloser) *ByteWriter {
	return NewByteWriter(NewBufferedWriteCloser(w))
}

func (bw *ByteWriter) WriteBytes(b []byte) error {
	if err := bw.WriteInt(len(b)); err != nil {
		return err
	}
	_, err := bw.w.Write(b)
	return err
}

func (bw *ByteWriter) WriteString(s string) error {
	return bw.WriteBytes([]byte(s))
}

func (bw *ByteWriter) WriteInt(i int) error {
	binary.LittleEndian.PutUint64(bw.buf[:], uint64(int64(i)))
	_, err := bw.w.Write(bw.buf[:])
	return err
}

func (bw *ByteWriter) WriteFloat(f float64) error {
	binary.LittleEndian.PutUint64(bw.buf[:], math.Float64bits(f))
	_, err := bw.w.Write(bw.buf[:])
	return err
}

func (bw *ByteWriter) Close() error {
	return bw.w.Close()
}

// ByteReader decodes the fields written by ByteWriter. A clean io.EOF is only
// returned when the stream ends exactly on a field boundary; a stream that ends
// inside a field yields io.ErrUnexpectedEOF.
type ByteReader struct {
	r   io.Reader
	buf [8]byte
}

func NewByteReader(r io.Reader) *ByteReader {
	return &ByteReader{
		r: r,
	}
}

func NewBufferedByteReader(r io.Reader) *ByteReader {
	return NewByteReader(NewBufferedReadCloser(r))
}

func (br *ByteReader) ReadBytes() ([]byte, error) {
	length, err := br.ReadInt()
	if err != nil {
		return nil, err
	}
	if length < 0 || length > MaxBytesLen {
		return nil, ErrInvalidLength
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(br.r, b); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return b, nil
}

func (br *ByteReader) ReadString() (string, error) {
	b, err := br.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (br *ByteReader) ReadInt() (int, error) {
	if _, err := io.ReadFull(br.r, br.buf[:]); err != nil {
		return 0, err
	}
	return int(int64(binary.LittleEndian.Uint64(br.buf[:]))), nil
}

func (br *ByteReader) ReadFloat() (float64, error) {
	if _, err := io.ReadFull(br.r, br.buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(br.buf[:])), nil
}

func (br *ByteReader) Close() error {
	if c, ok := br.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
