// Package session runs the device authorization flow and owns the persisted
// session list: creating sessions at the end of a successful poll, refreshing
// them on read, pruning the ones that can no longer be used, and notifying
// subscribers after every persisted change.
package session
