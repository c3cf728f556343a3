// Package perm computes effective managers and authorization decisions over
// the organization hierarchy.
//
// The evaluator is pure and read-only: it reads organizations and confirmed
// manage edges through a Source and derives who can manage what. Mutating
// services invoke it at the start of every operation, on the same transaction
// that will apply the mutation, so the decision and the state change see one
// consistent snapshot. Results are never cached across calls.
package perm
