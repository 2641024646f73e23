// Package memory implements the per-agent long-term memory store:
// embedding-based similarity retrieval with access bookkeeping, importance
// reinforcement on recall, and periodic importance decay with pruning.
package memory
