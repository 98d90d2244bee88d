// package tasks implements collection reconciliation and synchronization.
//
// Comparer diffs the hand-maintained master list against the generated data
// set into Added/Removed/Modified change sets. Applier consumes those change
// sets and drives lookups, image builds and in-memory list mutation, isolating
// failures at the per-game boundary. Both emit progress updates via channels
// for non-blocking status reporting to the CLI layer.
package tasks
