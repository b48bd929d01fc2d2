// Package filesystem reads manuscript files from a local directory and
// watches it for changes with fsnotify.
//
// Supported files are plain text (.txt), Markdown (.md, .markdown),
// HTML (.html, .htm) and Word (.docx). Hidden files and directories are skipped.
package filesystem
