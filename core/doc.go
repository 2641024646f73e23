// Package core defines the shared domain model and service contracts of
// StaffMesh: agents and their capabilities, conversations and messages,
// long-term agent memory, documents with their retrieval chunks, task
// execution records, the embedding/completion gateway, and the error
// taxonomy used across package boundaries.
//
// Interfaces live here; implementations live in sibling packages (memory,
// conversation, rag, tracker, store/sqlite, gateway). Components never
// reach into another component's state directly - all shared mutable state
// is mutated through the owning store's contract.
package core
