package dx

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/fieldlines/internal/fsutil"
	"github.com/banshee-data/fieldlines/internal/grid"
)

// valuesPerLine matches the layout APBS and gridData emit.
const valuesPerLine = 3

// Write emits g as a DX file. comment lines are prefixed with '#'.
func Write(w io.Writer, g *grid.Grid, comment ...string) error {
	bw := bufio.NewWriter(w)
	for _, c := range comment {
		fmt.Fprintf(bw, "# %s\n", c)
	}
	d := g.Dims()
	o := g.Origin()
	s := g.Spacing()
	fmt.Fprintf(bw, "object 1 class gridpositions counts %d %d %d\n", d[0], d[1], d[2])
	fmt.Fprintf(bw, "origin %s %s %s\n", num(o.X), num(o.Y), num(o.Z))
	fmt.Fprintf(bw, "delta %s 0 0\n", num(s.X))
	fmt.Fprintf(bw, "delta 0 %s 0\n", num(s.Y))
	fmt.Fprintf(bw, "delta 0 0 %s\n", num(s.Z))
	fmt.Fprintf(bw, "object 2 class gridconnections counts %d %d %d\n", d[0], d[1], d[2])
	fmt.Fprintf(bw, "object 3 class array type double rank 0 items %d data follows\n", g.Len())

	row := make([]string, 0, valuesPerLine)
	for _, v := range g.Values() {
		row = append(row, strconv.FormatFloat(v, 'e', 6, 64))
		if len(row) == valuesPerLine {
			bw.WriteString(strings.Join(row, " "))
			bw.WriteByte('\n')
			row = row[:0]
		}
	}
	if len(row) > 0 {
		bw.WriteString(strings.Join(row, " "))
		bw.WriteByte('\n')
	}
	bw.WriteString("attribute \"dep\" string \"positions\"\n")
	bw.WriteString("object \"scalar field\" class field\n")
	bw.WriteString("component \"positions\" value 1\n")
	bw.WriteString("component \"connections\" value 2\n")
	bw.WriteString("component \"data\" value 3\n")
	return bw.Flush()
}

// Save writes g to path through fsys, gzip-compressing names ending in .gz.
func Save(fsys fsutil.FileSystem, path string, g *grid.Grid, comment ...string) error {
	f, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return fmt.Errorf("create grid %s: %w", path, err)
	}

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
	}
	if err := Write(w, g, comment...); err != nil {
		f.Abort()
		return fmt.Errorf("write grid %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			f.Abort()
			return fmt.Errorf("write grid %s: %w", path, err)
		}
	}
	return f.Close()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
