package http

import "strings"

const defaultContentType = "application/octet-stream"

// Checked in order; suffix match is case-sensitive.
var contentTypes = []struct {
	suffix      string
	contentType string
}{
	{".htm", "text/html"},
	{".html", "text/html"},
	{".jpg", "image/jpeg"},
	{".jpeg", "image/jpeg"},
	{".gif", "image/gif"},
	{".png", "image/png"},
	{".css", "text/css"},
	{".js", "application/javascript"},
}

// ContentType returns the content type for a file name based on its suffix.
func ContentType(name string) string {
	for _, ct := range contentTypes {
		if strings.HasSuffix(name, ct.suffix) {
			return ct.contentType
		}
	}
	return defaultContentType
}
