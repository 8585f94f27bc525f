// Package analyses is the sole authority for creating and transitioning
// analysis records. Every persisted transition is paired with exactly one
// state-change event on the event feed.
package analyses
