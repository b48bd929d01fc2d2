// Package connectors holds the manuscript sources. Each source reads files
// from one kind of location and reports changes as domain.RawDocumentChange
// events; filesystem is the local directory source.
package connectors
