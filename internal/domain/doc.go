// Package domain defines the core types of the campaign sender.
//
// Types in this package are value objects with no I/O. They are the shared
// language between the HTTP handlers, the stores, the transport layer and
// the dispatcher.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Validation methods are allowed (they're pure functions on the type)
//   - Constants and enums belong here
package domain
