package document

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/muyusufspa/spgpt/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReader_PlainTextPassthrough(t *testing.T) {
	reader := NewReader(zap.NewNop())

	text, err := reader.ExtractText(&entity.UploadedFile{
		Filename: "note.txt",
		Mimetype: "text/plain",
		Data:     []byte("Invoice No 17\nTotal: 100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Invoice No 17\nTotal: 100", text)
}

func TestReader_CSVByExtension(t *testing.T) {
	reader := NewReader(zap.NewNop())

	// CSV uploads sometimes arrive with a generic content type.
	text, err := reader.ExtractText(&entity.UploadedFile{
		Filename: "lines.CSV",
		Mimetype: "application/octet-stream",
		Data:     []byte("item,qty\nfuel,2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "item,qty\nfuel,2", text)
}

func TestReader_UnsupportedType(t *testing.T) {
	reader := NewReader(zap.NewNop())

	_, err := reader.ExtractText(&entity.UploadedFile{
		Filename: "photo.png",
		Mimetype: "image/png",
		Data:     []byte{0x89, 0x50},
	})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
	assert.Contains(t, err.Error(), "image/png")
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestReader_DOCXTextRuns(t *testing.T) {
	reader := NewReader(zap.NewNop())

	docXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Invoice 42</w:t></w:r></w:p>
    <w:p><w:r><w:t>Total: </w:t></w:r><w:r><w:t>500 SAR</w:t></w:r></w:p>
  </w:body>
</w:document>`

	text, err := reader.ExtractText(&entity.UploadedFile{
		Filename: "invoice.docx",
		Mimetype: mimeDOCX,
		Data:     buildDOCX(t, docXML),
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Invoice 42")
	assert.Contains(t, text, "Total: 500 SAR")
}

func TestReader_DOCXMissingBody(t *testing.T) {
	reader := NewReader(zap.NewNop())

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	_, err := w.Create("word/other.xml")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = reader.ExtractText(&entity.UploadedFile{
		Filename: "broken.docx",
		Mimetype: mimeDOCX,
		Data:     buf.Bytes(),
	})
	assert.Error(t, err)
}
