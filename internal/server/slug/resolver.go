// Package slug assigns entries a URL title that is unique within their scope.
//
// A slug comes from one of three sources, in order: an explicit override
// accepted by the configured pattern, the entry's previous slug if it still
// matches the pattern, or the normalized title. Overrides and titles then go
// through the uniqueness loop, which appends "-1", "-2", ... until a slug is
// free or already owned by the same entry. When no pattern is configured
// overrides are never trusted and previous slugs are never pinned.
package slug

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/pubflow/internal/common"
	"github.com/dmitrijs2005/pubflow/internal/logging"
	"github.com/dmitrijs2005/pubflow/internal/server/models"
)

const (
	DefaultMaxLength   = 150
	DefaultMaxAttempts = 1000
)

// Finder looks up the entry currently owning a slug in a scope. It returns
// common.ErrorNotFound when the slug is free.
type Finder interface {
	FindBySlug(ctx context.Context, scopeID, urlTitle string) (*models.Entry, error)
}

type Resolver struct {
	finder      Finder
	pattern     *regexp.Regexp
	maxLength   int
	maxAttempts int
	logger      logging.Logger
}

// Options tunes a Resolver. Zero values fall back to the package defaults.
type Options struct {
	// Pattern is the regular expression an explicit override or a previous
	// slug must match to be trusted. Empty disables both.
	Pattern     string
	MaxLength   int
	MaxAttempts int
}

func NewResolver(finder Finder, opts Options, logger logging.Logger) (*Resolver, error) {
	r := &Resolver{
		finder:      finder,
		maxLength:   opts.MaxLength,
		maxAttempts: opts.MaxAttempts,
		logger:      logger.With("module", "slug"),
	}
	if r.maxLength <= 0 {
		r.maxLength = DefaultMaxLength
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = DefaultMaxAttempts
	}
	if opts.Pattern != "" {
		// The whole candidate must match, not just a substring of it.
		re, err := regexp.Compile("^(?:" + opts.Pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("compile url title pattern: %w", err)
		}
		r.pattern = re
	}
	return r, nil
}

func (r *Resolver) MaxLength() int { return r.maxLength }

// Trusted reports whether s matches the configured pattern.
func (r *Resolver) Trusted(s string) bool {
	return r.pattern != nil && s != "" && r.pattern.MatchString(s)
}

// ValidateOverride rejects overrides that can never become a slug.
func (r *Resolver) ValidateOverride(override string) error {
	if override == "" {
		return nil
	}
	if len(override) > r.maxLength {
		return fmt.Errorf("%w: longer than %d", common.ErrInvalidURLTitle, r.maxLength)
	}
	if Normalize(override, r.maxLength) == "" {
		return fmt.Errorf("%w: %q has no usable characters", common.ErrInvalidURLTitle, override)
	}
	return nil
}

// Resolve returns the URL title entryID should own in scopeID.
func (r *Resolver) Resolve(ctx context.Context, scopeID, entryID, candidateTitle, previousSlug, explicitOverride string) (string, error) {
	if r.Trusted(explicitOverride) {
		if err := r.ValidateOverride(explicitOverride); err != nil {
			return "", err
		}
		return r.unique(ctx, scopeID, entryID, Normalize(explicitOverride, r.maxLength))
	}
	if explicitOverride != "" {
		r.logger.Debug(ctx, "url title override ignored", "entry_id", entryID, "override", explicitOverride)
	}

	if r.Trusted(previousSlug) {
		return previousSlug, nil
	}

	base := Normalize(candidateTitle, r.maxLength)
	if base == "" {
		base = cut(strings.ToLower(entryID), r.maxLength)
	}
	return r.unique(ctx, scopeID, entryID, base)
}

// unique runs the collision loop starting from base.
func (r *Resolver) unique(ctx context.Context, scopeID, entryID, base string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		free, err := r.available(ctx, scopeID, entryID, candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
		if i > r.maxAttempts {
			return "", fmt.Errorf("%w: %d attempts for %q", common.ErrSlugConflict, r.maxAttempts, base)
		}

		candidate, err = withSuffix(base, i, r.maxLength)
		if err != nil {
			return "", err
		}
		r.logger.Debug(ctx, "url title taken, trying next", "scope_id", scopeID, "candidate", candidate)
	}
}

func (r *Resolver) available(ctx context.Context, scopeID, entryID, candidate string) (bool, error) {
	owner, err := r.finder.FindBySlug(ctx, scopeID, candidate)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("find by url title: %w", err)
	}
	return owner.ID == entryID, nil
}

// withSuffix appends "-i" to base, truncating base so the result fits
// maxLength. The suffix itself is never cut.
func withSuffix(base string, i, maxLength int) (string, error) {
	suffix := "-" + strconv.Itoa(i)
	room := maxLength - len(suffix)
	if room <= 0 {
		return "", fmt.Errorf("%w: suffix %q does not fit in %d", common.ErrSlugConflict, suffix, maxLength)
	}
	prefix := base
	if len(prefix) > room {
		prefix = strings.TrimRight(prefix[:room], "-")
	}
	if prefix == "" {
		return "", fmt.Errorf("%w: nothing left of %q", common.ErrSlugConflict, base)
	}
	return prefix + suffix, nil
}
