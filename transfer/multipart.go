package transfer

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/moyoez/kbupload/selection"
)

// FilesField is the repeated multipart field the ingestion endpoint reads.
const FilesField = "files"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// buildMultipart writes every payload as one "files" part. Only file content and
// the original filename go on the wire.
func buildMultipart(payloads []selection.Payload) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, p := range payloads {
		if err := writePart(writer, p); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish multipart body: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

func writePart(writer *multipart.Writer, p selection.Payload) error {
	contentType := p.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FilesField, quoteEscaper.Replace(p.Name())))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create part for %s: %w", p.Name(), err)
	}

	src, err := p.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", p.Name(), err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logCloseError(p.Name(), err)
		}
	}()

	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("failed to read %s: %w", p.Name(), err)
	}
	return nil
}
