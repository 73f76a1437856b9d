package plaintext

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// Email renders the headers and text/plain body parts of an RFC 5322 message.
type Email struct{}

func NewEmail() Email { return Email{} }

func (Email) Extensions() []string { return []string{".eml"} }

func (Email) Extract(_ context.Context, data []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse message: %w", err)
	}

	var out strings.Builder
	dec := new(mime.WordDecoder)
	for _, key := range []string{"From", "To", "Cc", "Date", "Subject"} {
		value := msg.Header.Get(key)
		if value == "" {
			continue
		}
		if decoded, err := dec.DecodeHeader(value); err == nil {
			value = decoded
		}
		fmt.Fprintf(&out, "%s: %s\n", key, value)
	}
	out.WriteString("\n")

	body, err := readPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return "", err
	}
	out.WriteString(body)
	return out.String(), nil
}

func readPart(contentType, encoding string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		var parts []string
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("read multipart: %w", err)
			}
			text, err := readPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n"), nil
	}

	if mediaType != "text/plain" {
		return "", nil
	}

	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		body = quotedprintable.NewReader(body)
	case "base64":
		body = base64.NewDecoder(base64.StdEncoding, body)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(raw), nil
}
