// Package common defines the sentinel errors shared by the pubflow engine,
// its repositories and its collaborator adapters. Callers should match them
// with errors.Is; most are wrapped with additional context on the way up.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrSlugTaken is returned by the entry store when a write would violate
	// the (scope_id, url_title) unique index.
	ErrSlugTaken = errors.New("url title already taken")

	// Validation errors. Rejected before any mutation.
	ErrValidation      = errors.New("validation error")
	ErrEmptyScope      = fmt.Errorf("%w: scope is required", ErrValidation)
	ErrEmptyTitle      = fmt.Errorf("%w: title is required", ErrValidation)
	ErrTitleTooLong    = fmt.Errorf("%w: title is too long", ErrValidation)
	ErrEmptyBody       = fmt.Errorf("%w: body is required", ErrValidation)
	ErrInvalidURLTitle = fmt.Errorf("%w: invalid url title", ErrValidation)
	ErrInvalidStatus   = fmt.Errorf("%w: unknown status", ErrValidation)

	// Conflict errors. No partial state change is made.
	ErrConflict          = errors.New("conflict")
	ErrSlugConflict      = fmt.Errorf("%w: unable to claim a unique url title", ErrConflict)
	ErrNotInTrash        = fmt.Errorf("%w: entry has no trash record", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrConflict)
	ErrNoWorkflow        = fmt.Errorf("%w: entry has no pending workflow instance", ErrConflict)

	// ErrorInternal marks stored data the engine cannot interpret.
	ErrorInternal = errors.New("internal error")
)
