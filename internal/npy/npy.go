// Package npy reads and writes two dimensional float32 matrices in the
// NumPy .npy version 1.0 format. It covers exactly the subset the feature
// cache needs so extracted features stay interchangeable with the Python
// training tools.
package npy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var magic = []byte("\x93NUMPY")

const (
	versionMajor = 1
	versionMinor = 0

	// Header is padded so the data section starts on a 64 byte boundary.
	headerAlign = 64
)

// Matrix is a dense row-major float32 matrix.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed matrix with the given shape.
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid shape (%d, %d)", rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}, nil
}

// Row returns a slice aliasing row i of the matrix.
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// SetRow copies values into row i. The value count must match the column count.
func (m *Matrix) SetRow(i int, values []float32) error {
	if len(values) != m.Cols {
		return fmt.Errorf("row length %d does not match %d columns", len(values), m.Cols)
	}
	copy(m.Row(i), values)
	return nil
}

// Write encodes the matrix to w.
func Write(w io.Writer, m *Matrix) error {
	if m == nil {
		return fmt.Errorf("matrix is nil")
	}
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("data length %d does not match shape (%d, %d)", len(m.Data), m.Rows, m.Cols)
	}

	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", m.Rows, m.Cols)
	// magic + version + header length prefix
	prefix := len(magic) + 2 + 2
	padded := prefix + len(header) + 1
	if rem := padded % headerAlign; rem != 0 {
		padded += headerAlign - rem
	}
	header += strings.Repeat(" ", padded-prefix-len(header)-1) + "\n"

	buf := bufio.NewWriter(w)
	if _, err := buf.Write(magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if _, err := buf.Write([]byte{versionMajor, versionMinor}); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(header)))
	if _, err := buf.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write header length: %w", err)
	}
	if _, err := buf.WriteString(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var scratch [4]byte
	for _, v := range m.Data {
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(v))
		if _, err := buf.Write(scratch[:]); err != nil {
			return fmt.Errorf("write data: %w", err)
		}
	}
	return buf.Flush()
}

// WriteFile atomically writes the matrix to path. The content lands in a
// temporary sibling file first so readers never observe a partial cache entry.
func WriteFile(path string, m *Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := Write(tmp, m); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Read decodes a two dimensional float32 matrix from r.
func Read(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)

	head := make([]byte, len(magic)+2+2)
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("read header prefix: %w", err)
	}
	if !bytes.Equal(head[:len(magic)], magic) {
		return nil, fmt.Errorf("not an npy file")
	}
	major, minor := head[len(magic)], head[len(magic)+1]
	if major != versionMajor || minor != versionMinor {
		return nil, fmt.Errorf("unsupported npy version %d.%d", major, minor)
	}
	headerLen := binary.LittleEndian.Uint16(head[len(magic)+2:])

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(br, headerBytes); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	rows, cols, err := parseHeader(string(headerBytes))
	if err != nil {
		return nil, err
	}

	m, err := NewMatrix(rows, cols)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, 4*rows*cols)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	for i := range m.Data {
		m.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return m, nil
}

// ReadFile decodes the matrix stored at path.
func ReadFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return m, nil
}

// ReadShape decodes only the header of the file at path and returns its shape.
// Cache validation uses this to check entries without loading the data.
func ReadShape(path string) (rows, cols int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	head := make([]byte, len(magic)+2+2)
	if _, err := io.ReadFull(f, head); err != nil {
		return 0, 0, fmt.Errorf("read header prefix: %w", err)
	}
	if !bytes.Equal(head[:len(magic)], magic) {
		return 0, 0, fmt.Errorf("not an npy file")
	}
	if head[len(magic)] != versionMajor || head[len(magic)+1] != versionMinor {
		return 0, 0, fmt.Errorf("unsupported npy version %d.%d", head[len(magic)], head[len(magic)+1])
	}
	headerLen := binary.LittleEndian.Uint16(head[len(magic)+2:])
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return 0, 0, fmt.Errorf("read header: %w", err)
	}
	return parseHeader(string(headerBytes))
}

func parseHeader(header string) (rows, cols int, err error) {
	if !strings.Contains(header, "'descr': '<f4'") {
		return 0, 0, fmt.Errorf("unsupported dtype in header %q", strings.TrimSpace(header))
	}
	if !strings.Contains(header, "'fortran_order': False") {
		return 0, 0, fmt.Errorf("fortran order arrays are not supported")
	}

	start := strings.Index(header, "'shape': (")
	if start < 0 {
		return 0, 0, fmt.Errorf("missing shape in header %q", strings.TrimSpace(header))
	}
	start += len("'shape': (")
	end := strings.Index(header[start:], ")")
	if end < 0 {
		return 0, 0, fmt.Errorf("malformed shape in header %q", strings.TrimSpace(header))
	}

	parts := strings.Split(header[start:start+end], ",")
	var dims []int
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dim, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, fmt.Errorf("parse shape dimension %q: %w", part, err)
		}
		dims = append(dims, dim)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("expected 2-d array, got %d dimensions", len(dims))
	}
	if dims[0] <= 0 || dims[1] <= 0 {
		return 0, 0, fmt.Errorf("invalid shape (%d, %d)", dims[0], dims[1])
	}
	return dims[0], dims[1], nil
}
