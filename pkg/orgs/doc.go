// Package orgs manages the membership graph: organizations arranged in a
// forest hierarchy and the manage edges linking users to them.
//
// Every mutating operation runs as one transaction combining the permission
// check, the state change, and the audit log entries. The permission check
// reads through the same transaction, so it sees the snapshot the mutation
// will apply to.
package orgs
