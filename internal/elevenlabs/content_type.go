package elevenlabs

import (
	"mime"
	"path/filepath"
	"strings"
)

// Document formats the knowledge base is known to accept.
var contentTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".epub": "application/epub+zip",
	".html": "text/html",
	".htm":  "text/html",
}

// ContentTypeFor resolves the content type for an uploaded file: the fixed
// table first, then the platform mime registry, then text/plain.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "text/plain"
}
