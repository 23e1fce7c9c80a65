package domain

import "errors"

// ErrNilModel is returned when a Store is constructed without a Model.
var ErrNilModel = errors.New("store requires a model")

// ErrReentrantMutation is returned when a state change is requested while
// another one is still running on the same Store or Document.
var ErrReentrantMutation = errors.New("state change already in progress")

// ErrStoreAttached is returned when a Store is handed to a second Document,
// or attached to its Document under a second key.
var ErrStoreAttached = errors.New("store is already attached")

// ErrModelNotCopyable is returned when a Model keeps unexported state and
// does not implement Cloner, so no faithful read-only view can be made.
var ErrModelNotCopyable = errors.New("model has unexported state and no Clone method")

// ErrModelType is returned by typed accessors when the Store holds a
// different concrete Model.
var ErrModelType = errors.New("unexpected model type")

// ErrUnknownAction is reported by outer surfaces (service, HTTP, MCP) when a
// dispatched action type has no registered handler.
var ErrUnknownAction = errors.New("unknown action type")

// ErrSnapshotNotFound is returned when a snapshot ID cannot be found in the store.
var ErrSnapshotNotFound = errors.New("snapshot not found")
