// Package conversation implements core.ConversationStore in memory:
// conversations with insertion-ordered message sequences and cascade
// deletion of owned records.
package conversation
