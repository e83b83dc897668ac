package fileio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const peekSize = 4096

// readCSV читает CSV с определением кодировки (UTF-8, иначе Windows-1252 или Windows-1251)
// и разделителя (";" у испанского Excel, иначе ",").
func readCSV(r io.Reader, headerRow int) ([]map[string]string, error) {
	br := bufio.NewReader(r)

	peek, _ := br.Peek(peekSize)
	sample := peek
	if len(peek) == peekSize {
		sample = trimPartialRune(peek)
	}
	var dec io.Reader = br
	if !utf8.Valid(sample) {
		// не UTF-8: по умолчанию latin1 (Windows-1252), кириллицу отдаём chardet
		enc := charmap.Windows1252
		if det, err := chardet.NewTextDetector().DetectBest(peek); err == nil && det != nil {
			if strings.EqualFold(det.Charset, "windows-1251") {
				enc = charmap.Windows1251
			}
		}
		dec = transform.NewReader(br, enc.NewDecoder())
	}

	cr := csv.NewReader(dec)
	cr.Comma = sniffDelimiter(peek)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	h := pickHeader(rows, headerRow)
	return rowsToMaps(rows, h, headerRow), nil
}

// sniffDelimiter — по первой строке: ";" если их больше, чем запятых, иначе ",".
func sniffDelimiter(peek []byte) rune {
	line := peek
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		line = peek[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	if bytes.Count(line, []byte{'\t'}) > bytes.Count(line, []byte{','}) {
		return '\t'
	}
	return ','
}

// trimPartialRune отрезает руну, разрезанную границей Peek.
func trimPartialRune(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size != 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}
