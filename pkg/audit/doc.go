// Package audit produces the immutable, field-level audit trail.
//
// Every mutation in the system records what happened: CREATE and DELETE emit
// exactly one entry with no field diff, while UPDATE emits one entry per
// whitelisted field whose value actually changed. Entries are written with the
// same transaction that applied the mutation, so a committed state change
// without its log entries cannot occur. Entries are append-only; no code path
// updates or deletes a row in the logs table.
package audit
