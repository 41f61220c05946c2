// Facet - Jewelry Retrieval and Personalized Combination Recommendations
// Copyright 2026 Prasham Shah (prashamshah115)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prashamshah115/jewelry-recommender

package pool

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// The embedding matrices are exported as NPY files. Only the subset of the
// format those exports produce is supported: little-endian float32/float64,
// C order, 2-D shape.

var npyMagic = []byte("\x93NUMPY")

var (
	descrRe = regexp.MustCompile(`'descr':\s*'([^']+)'`)
	orderRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe = regexp.MustCompile(`'shape':\s*\((\d+),\s*(\d+)\)`)
)

// readNPY parses a 2-D NPY matrix into per-row float32 slices.
func readNPY(r io.Reader) ([][]float32, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, 6)
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("reading npy magic: %w", err)
	}
	if string(magic) != string(npyMagic) {
		return nil, fmt.Errorf("not an npy file")
	}

	ver := make([]byte, 2)
	if _, err := io.ReadFull(br, ver); err != nil {
		return nil, fmt.Errorf("reading npy version: %w", err)
	}

	var headerLen int
	switch ver[0] {
	case 1:
		var n uint16
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("reading npy header length: %w", err)
		}
		headerLen = int(n)
	case 2, 3:
		var n uint32
		if err := binary.Read(br, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("reading npy header length: %w", err)
		}
		headerLen = int(n)
	default:
		return nil, fmt.Errorf("unsupported npy version %d.%d", ver[0], ver[1])
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("reading npy header: %w", err)
	}
	hs := string(header)

	descr := descrRe.FindStringSubmatch(hs)
	if descr == nil {
		return nil, fmt.Errorf("npy header missing descr")
	}
	if m := orderRe.FindStringSubmatch(hs); m == nil || m[1] != "False" {
		return nil, fmt.Errorf("fortran-order npy matrices are not supported")
	}
	shape := shapeRe.FindStringSubmatch(hs)
	if shape == nil {
		return nil, fmt.Errorf("npy shape is not 2-D")
	}
	rows, _ := strconv.Atoi(shape[1])
	cols, _ := strconv.Atoi(shape[2])
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("degenerate npy shape (%d, %d)", rows, cols)
	}

	var elemSize int
	switch strings.TrimPrefix(descr[1], "<") {
	case "f4":
		elemSize = 4
	case "f8":
		elemSize = 8
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", descr[1])
	}

	raw := make([]byte, rows*cols*elemSize)
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, fmt.Errorf("reading npy data (%dx%d): %w", rows, cols, err)
	}

	out := make([][]float32, rows)
	flat := make([]float32, rows*cols)
	for i := range flat {
		off := i * elemSize
		if elemSize == 4 {
			flat[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		} else {
			flat[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(raw[off:])))
		}
	}
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out, nil
}
