package content

import (
	"bytes"
	"fmt"
	"html"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"parley/internal/models"

	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const maxDisplayNameLength = 32

var (
	policy   = bluemonday.UGCPolicy()
	strict   = bluemonday.StrictPolicy()
	markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))
)

// Sanitize removes unsafe HTML from the input string.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// RenderText converts a markdown text body into sanitized HTML.
func RenderText(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return Sanitize(buf.String()), nil
}

// ValidateDisplayName checks a display name and returns its trimmed form.
// Dashes are rejected because private room ids join names with them.
func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: display name cannot be empty", models.ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", fmt.Errorf("%w: display name is longer than %d characters", models.ErrInvalidName, maxDisplayNameLength)
	}
	if strings.ContainsRune(name, '-') {
		return "", fmt.Errorf("%w: display name cannot contain '-'", models.ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: display name contains control characters", models.ErrInvalidName)
		}
	}
	if hasMarkup(name) {
		return "", fmt.Errorf("%w: display name contains markup", models.ErrInvalidName)
	}
	return name, nil
}

// ValidateRoomName trims a room name and rejects blank ones and markup.
// Names are kept unescaped.
func ValidateRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: room name cannot be empty", models.ErrInvalidName)
	}
	if hasMarkup(name) {
		return "", fmt.Errorf("%w: room name contains markup", models.ErrInvalidName)
	}
	return name, nil
}

// hasMarkup reports whether the strict policy would drop anything from s
// beyond entity escaping.
func hasMarkup(s string) bool {
	return html.UnescapeString(strict.Sanitize(s)) != s
}

// NormalizeBody validates an inbound body and fills in derived fields:
// rendered HTML for text, MIME type from the filename for attachments.
func NormalizeBody(req models.BodyRequest) (models.Body, error) {
	body := models.Body{
		Kind:     req.Kind,
		Payload:  req.Payload,
		Filename: strings.TrimSpace(req.Filename),
		MimeType: strings.TrimSpace(req.MimeType),
	}

	switch body.Kind {
	case models.BodyKindText:
		if strings.TrimSpace(body.Payload) == "" {
			return models.Body{}, fmt.Errorf("%w: text body is empty", models.ErrValidation)
		}
		html, err := RenderText(body.Payload)
		if err != nil {
			return models.Body{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
		}
		body.HTML = html
		body.Filename = ""
		body.MimeType = ""
	case models.BodyKindImage, models.BodyKindFile:
		body.Payload = strings.TrimSpace(body.Payload)
		if body.Payload == "" {
			return models.Body{}, fmt.Errorf("%w: attachment reference is empty", models.ErrValidation)
		}
		body.Filename = filepath.Base(body.Filename)
		if body.Filename == "." || body.Filename == "/" {
			body.Filename = ""
		}
		if body.MimeType == "" {
			body.MimeType = mimeFromFilename(body.Filename)
		}
		if body.Kind == models.BodyKindImage && body.MimeType != "" && !strings.HasPrefix(body.MimeType, "image/") {
			return models.Body{}, fmt.Errorf("%w: image body with MIME type %q", models.ErrValidation, body.MimeType)
		}
	default:
		return models.Body{}, fmt.Errorf("%w: unknown body kind %q", models.ErrValidation, body.Kind)
	}

	return body, nil
}

func mimeFromFilename(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return ""
	}
	t := filetype.GetType(ext)
	if t == filetype.Unknown {
		return ""
	}
	return t.MIME.Value
}

// Preview returns a short plain-text description of a body for
// notifications, truncated to maxRunes.
func Preview(body models.Body, maxRunes int) string {
	var s string
	switch body.Kind {
	case models.BodyKindText:
		s = strings.Join(strings.Fields(body.Payload), " ")
	case models.BodyKindImage:
		s = "Image"
		if body.Filename != "" {
			s = "Image: " + body.Filename
		}
	case models.BodyKindFile:
		s = "File"
		if body.Filename != "" {
			s = "File: " + body.Filename
		}
	}
	if s == "" {
		return "New message"
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes])
}
