// Package wkt reads and writes the subset of Well-Known Text used by map and
// point-of-interest files: POINT, MULTIPOINT and LINESTRING geometries, one
// geometry per line. Blank lines and lines starting with '#' are ignored.
package wkt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Point is a planar coordinate as written in a WKT file.
type Point struct {
	X float64
	Y float64
}

// ReadPoints returns every point of every POINT or MULTIPOINT geometry in r.
// Other geometry types are skipped.
func ReadPoints(r io.Reader) ([]Point, error) {
	var points []Point
	err := scan(r, func(lineNo int, kind, body string) error {
		switch kind {
		case "POINT", "MULTIPOINT":
			pts, err := parseCoords(body)
			if err != nil {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
			points = append(points, pts...)
		}
		return nil
	})
	return points, err
}

// ReadLineStrings returns the vertices of every LINESTRING geometry in r.
func ReadLineStrings(r io.Reader) ([][]Point, error) {
	var lines [][]Point
	err := scan(r, func(lineNo int, kind, body string) error {
		if kind != "LINESTRING" {
			return nil
		}
		pts, err := parseCoords(body)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if len(pts) < 2 {
			return fmt.Errorf("line %d: linestring needs at least two points", lineNo)
		}
		lines = append(lines, pts)
		return nil
	})
	return lines, err
}

// WritePoints writes one POINT geometry per line.
func WritePoints(w io.Writer, points []Point) error {
	bw := bufio.NewWriter(w)
	for _, p := range points {
		if _, err := fmt.Fprintf(bw, "POINT (%s %s)\n",
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func scan(r io.Reader, fn func(lineNo int, kind, body string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		open := strings.IndexByte(line, '(')
		if open < 0 {
			return fmt.Errorf("line %d: missing '(' in %q", lineNo, line)
		}
		kind := strings.ToUpper(strings.TrimSpace(line[:open]))
		if err := fn(lineNo, kind, line[open:]); err != nil {
			return err
		}
	}
	return sc.Err()
}

// parseCoords parses "(x y, x y)" and the MULTIPOINT variant "((x y), (x y))".
func parseCoords(body string) ([]Point, error) {
	body = strings.NewReplacer("(", " ", ")", " ").Replace(body)
	var pts []Point
	for _, pair := range strings.Split(body, ",") {
		fields := strings.Fields(pair)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("bad coordinate %q", strings.TrimSpace(pair))
		}
		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad x %q: %w", fields[0], err)
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad y %q: %w", fields[1], err)
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	return pts, nil
}
