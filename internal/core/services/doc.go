// Package services holds the core of lorekeeper: staleness detection, the
// job state machine, merge arbitration, change tracking and application,
// timeout supervision and the scheduler. Services depend only on driven
// ports, so every adapter can be swapped for an in-memory one in tests.
package services
