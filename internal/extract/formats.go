package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	docx "github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// extractCSV reads a CSV document into one tabular section: the first row
// becomes the header repeated per chunk, every following row is one unit.
// Rows are never split across chunks.
func extractCSV(content []byte) ([]section, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1 // tolerate ragged rows
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	sec := section{header: strings.Join(records[0], ",")}
	for _, row := range records[1:] {
		line := strings.Join(row, ",")
		if strings.TrimSpace(line) == "" {
			continue
		}
		sec.units = append(sec.units, line)
	}
	if len(sec.units) == 0 {
		// Header-only file: index the header itself rather than nothing.
		sec.units = []string{sec.header}
		sec.header = ""
	}
	return []section{sec}, nil
}

// extractXLSX reads a workbook into one tabular section per sheet, in
// CSV-like row form with the first row as header.
func extractXLSX(content []byte) ([]section, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var sections []section
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		sec := section{header: sheet + ": " + strings.Join(rows[0], ",")}
		for _, row := range rows[1:] {
			line := strings.Join(row, ",")
			if strings.TrimSpace(line) == "" {
				continue
			}
			sec.units = append(sec.units, line)
		}
		if len(sec.units) > 0 {
			sections = append(sections, sec)
		}
	}
	return sections, nil
}

// extractPDF extracts the plain text of a PDF and splits it into
// paragraph units.
func extractPDF(content []byte) ([]section, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, text); err != nil {
		return nil, fmt.Errorf("reading pdf text: %w", err)
	}
	return extractPlainText(buf.Bytes()), nil
}

// extractDOCX extracts paragraph text from a DOCX document.
func extractDOCX(content []byte) ([]section, error) {
	doc, err := docx.Parse(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("opening docx: %w", err)
	}

	var units []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := strings.TrimSpace(para.String())
		if text != "" {
			units = append(units, text)
		}
	}
	if len(units) == 0 {
		return nil, nil
	}
	return []section{{units: units}}, nil
}

// extractPlainText splits text into paragraph units on blank lines.
// Single newlines inside a paragraph are collapsed to spaces.
func extractPlainText(content []byte) []section {
	var (
		units []string
		para  []string
	)
	flush := func() {
		if len(para) > 0 {
			units = append(units, strings.Join(para, " "))
			para = para[:0]
		}
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		para = append(para, strings.TrimSpace(line))
	}
	flush()
	if len(units) == 0 {
		return nil
	}
	return []section{{units: units}}
}
