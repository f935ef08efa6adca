package mcp

import (
	"mime"
	"path/filepath"
	"strings"
)

// sourceTypes covers source and text formats the platform MIME table
// lacks or maps to media types (".ts" is MPEG transport stream there).
var sourceTypes = map[string]string{
	".go": "text/x-go", ".mod": "text/x-go.mod",
	".ts": "text/typescript", ".tsx": "text/typescript",
	".js": "text/javascript", ".jsx": "text/javascript", ".mjs": "text/javascript",
	".py": "text/x-python", ".rb": "text/x-ruby", ".php": "text/x-php",
	".rs": "text/x-rust", ".java": "text/x-java",
	".c": "text/x-c", ".h": "text/x-c", ".cpp": "text/x-c++", ".hpp": "text/x-c++",
	".sh": "text/x-sh", ".bash": "text/x-sh", ".zsh": "text/x-sh",
	".sql": "text/x-sql", ".scss": "text/x-scss",
	".yaml": "text/x-yaml", ".yml": "text/x-yaml", ".toml": "text/x-toml",
	".md": "text/markdown", ".mdx": "text/markdown", ".rst": "text/x-rst",
	".txt": "text/plain", ".ini": "text/plain", ".conf": "text/plain",
}

// namedTypes matches whole file names without a telling extension.
var namedTypes = map[string]string{
	"Dockerfile":     "text/x-dockerfile",
	"Makefile":       "text/x-makefile",
	"Jenkinsfile":    "text/x-groovy",
	"Gemfile":        "text/x-ruby",
	"Rakefile":       "text/x-ruby",
	"CMakeLists.txt": "text/x-cmake",
}

// MimeTypeForPath guesses a MIME type from a file name so clients can
// decide whether a match is worth opening. Unknown names are
// application/octet-stream.
func MimeTypeForPath(path string) string {
	if t, ok := namedTypes[filepath.Base(path)]; ok {
		return t
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "application/octet-stream"
	}
	if t, ok := sourceTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		// Drop parameters such as "; charset=utf-8".
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
		return t
	}
	return "application/octet-stream"
}
