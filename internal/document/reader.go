package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrUnsupportedFileType is returned for media types the reader cannot
// extract text from.
var ErrUnsupportedFileType = errors.New("unsupported file type for text extraction")

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS  = "application/vnd.ms-excel"
)

// Reader extracts plain text from uploaded documents.
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a document reader.
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ExtractText returns the textual content of the file. Plain text and CSV
// pass through verbatim; PDF pages, Word documents and spreadsheet sheets
// are concatenated in order.
func (r *Reader) ExtractText(file *entity.UploadedFile) (string, error) {
	switch {
	case strings.HasPrefix(file.Mimetype, "text/") || strings.HasSuffix(strings.ToLower(file.Filename), ".csv"):
		return string(file.Data), nil
	case file.Mimetype == mimePDF:
		return r.extractPDF(file.Data)
	case file.Mimetype == mimeDOCX:
		return extractDOCX(file.Data)
	case file.Mimetype == mimeXLSX || file.Mimetype == mimeXLS:
		return extractSpreadsheet(file.Data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, file.Mimetype)
	}
}

// extractPDF concatenates the text of every page.
func (r *Reader) extractPDF(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var full strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			r.logger.Warn("failed to extract page text",
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		full.WriteString(text)
		full.WriteString("\n")
	}
	return full.String(), nil
}

// extractDOCX pulls the raw text runs out of word/document.xml. A .docx is
// a zip of XML parts, so the stdlib decoders suffice.
func extractDOCX(data []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}

	var part *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return "", errors.New("document.xml not found in archive")
	}

	rc, err := part.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read document body: %w", err)
	}
	defer rc.Close()

	decoder := xml.NewDecoder(rc)
	var full strings.Builder
	var inText bool
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document body: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				full.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				full.Write(t)
			}
		}
	}
	return full.String(), nil
}

// extractSpreadsheet renders every sheet as CSV, concatenated with sheet
// headers.
func extractSpreadsheet(data []byte) (string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer workbook.Close()

	var full strings.Builder
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		full.WriteString(fmt.Sprintf("--- Sheet: %s ---\n", sheet))
		for _, row := range rows {
			full.WriteString(strings.Join(row, ","))
			full.WriteString("\n")
		}
		full.WriteString("\n")
	}
	return full.String(), nil
}
