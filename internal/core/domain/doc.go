// Package domain holds Lorekeeper's entities and sentinel errors: documents
// and their fingerprints, processing jobs, knowledge items, merge decisions
// and the change records produced by enhancement.
//
// Only the standard library may be imported here. Every other package
// depends on domain, never the reverse.
package domain
