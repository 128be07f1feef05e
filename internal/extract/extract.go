package extract

import (
	"bytes"
	"fmt"
	"strings"

	"resumeboost/internal/errors"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
)

// Supported upload MIME types.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// InferMIME returns the effective MIME type for an upload, falling back
// to the filename extension when the declared type is empty or generic.
func InferMIME(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return MimePDF
	case strings.HasSuffix(lower, ".docx"):
		return MimeDOCX
	}
	return ""
}

// IsAllowedMIME reports whether the type is on the upload allow-list.
func IsAllowedMIME(mime string) bool {
	return mime == MimePDF || mime == MimeDOCX
}

// Text converts an uploaded document into plain text, dispatching on the
// effective MIME type. Pure transformation over the input bytes; decoder
// failures surface as unextractable errors.
func Text(data []byte, mimeType, filename string) (string, error) {
	switch InferMIME(mimeType, filename) {
	case MimePDF:
		return pdfText(data)
	case MimeDOCX:
		return docxText(data)
	default:
		return "", errors.NewValidationError(errors.ErrCodeUnsupportedFormat,
			"Unsupported file type. Please upload a PDF or DOCX.", nil)
	}
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewUnextractableError(errors.ErrCodeExtractionFailed, "failed to open PDF", err)
	}

	content, err := reader.GetPlainText()
	if err != nil {
		return "", errors.NewUnextractableError(errors.ErrCodeExtractionFailed, "failed to extract PDF text", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", errors.NewUnextractableError(errors.ErrCodeExtractionFailed, "failed to read PDF text", err)
	}
	return buf.String(), nil
}

func docxText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewUnextractableError(errors.ErrCodeExtractionFailed, "failed to open DOCX", err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		if s, ok := item.(fmt.Stringer); ok {
			sb.WriteString(s.String())
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
