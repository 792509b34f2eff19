package fieldline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"
)

// Decimals is the fixed number of digits written after the decimal point.
const Decimals = 4

// ErrBadDocument wraps decode failures.
var ErrBadDocument = errors.New("fieldline: malformed document")

// Encoder writes the field-line document:
//
//	{"1":[[x,y,z],[x,y,z]],"2":[[x,y,z],...]}
//
// Ids start at 1 and are assigned only to lines with more than one point,
// in input order. The document always ends with a newline.
type Encoder struct {
	w   *bufio.Writer
	buf []byte
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w), buf: make([]byte, 0, 64)}
}

// Encode writes one complete document and returns the number of lines
// written.
func (e *Encoder) Encode(lines []Streamline) (int, error) {
	id := 0
	e.w.WriteByte('{')
	for _, l := range lines {
		if !l.Serializable() {
			continue
		}
		id++
		if id > 1 {
			e.w.WriteByte(',')
		}
		e.buf = e.buf[:0]
		e.buf = append(e.buf, '"')
		e.buf = strconv.AppendInt(e.buf, int64(id), 10)
		e.buf = append(e.buf, '"', ':', '[')
		e.w.Write(e.buf)
		for j, p := range l.Points {
			if j > 0 {
				e.w.WriteByte(',')
			}
			e.writePoint(p)
		}
		e.w.WriteByte(']')
	}
	e.w.WriteString("}\n")
	if err := e.w.Flush(); err != nil {
		return 0, fmt.Errorf("write document: %w", err)
	}
	return id, nil
}

func (e *Encoder) writePoint(p r3.Vec) {
	e.buf = e.buf[:0]
	e.buf = append(e.buf, '[')
	e.buf = strconv.AppendFloat(e.buf, p.X, 'f', Decimals, 64)
	e.buf = append(e.buf, ',')
	e.buf = strconv.AppendFloat(e.buf, p.Y, 'f', Decimals, 64)
	e.buf = append(e.buf, ',')
	e.buf = strconv.AppendFloat(e.buf, p.Z, 'f', Decimals, 64)
	e.buf = append(e.buf, ']')
	e.w.Write(e.buf)
}

// Decode reads a document written by Encoder and returns the point lists
// in id order. Ids must be "1", "2", ... without gaps.
func Decode(r io.Reader) ([][]r3.Vec, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: document must be an object", ErrBadDocument)
	}

	var lines [][]r3.Vec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
		}
		want := strconv.Itoa(len(lines) + 1)
		if key, _ := tok.(string); key != want {
			return nil, fmt.Errorf("%w: expected id %q, got %v", ErrBadDocument, want, tok)
		}
		var raw [][3]float64
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: line %s: %v", ErrBadDocument, want, err)
		}
		pts := make([]r3.Vec, len(raw))
		for i, p := range raw {
			pts[i] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
		}
		lines = append(lines, pts)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	return lines, nil
}
