// Package rag implements the document retrieval pipeline: separator-aware
// chunking, embedding-backed vector indexing, and query-time assembly of
// context text with source attribution.
package rag
