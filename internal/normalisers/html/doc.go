// Package html provides a Normaliser for HTML manuscript files. It strips
// tags, scripts and styles, decodes entities and keeps paragraph breaks.
package html
