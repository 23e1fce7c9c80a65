/*
Package session implements session management and persistence orchestration.

A session is a named Snapshot of a Document. The Manager serializes access
per session ID in-process, optionally coordinates replicas through a
ports.DistributedLocker, and converts between live Documents and stored
snapshots (Sync and Resume).
*/
package session
