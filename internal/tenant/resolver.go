// Package tenant resolves the project identifier carried in request paths.
// Identifiers are numeric IDs or slugs; both forms are supported permanently,
// with the numeric ID as the canonical internal representation. A suspended
// project resolves as not-found to non-admin callers so suspension cannot be
// probed from outside.
package tenant

import (
	"context"
	"errors"
	"strconv"

	"github.com/corebase/corebase/internal/db/models"
	"github.com/corebase/corebase/internal/telemetry"
)

// ErrProjectNotFound covers both a genuinely unknown identifier and an
// inactive project. Callers must not be able to tell the two apart.
var ErrProjectNotFound = errors.New("project not found")

// RefKind discriminates the two identifier forms
type RefKind int

const (
	RefID RefKind = iota
	RefSlug
)

// ProjectRef is a parsed project identifier: either a numeric ID or a slug.
type ProjectRef struct {
	Kind RefKind
	ID   int64
	Slug string
}

// ParseRef classifies a raw path identifier. An entirely numeric identifier
// is an ID; anything else is a slug.
func ParseRef(identifier string) ProjectRef {
	if identifier == "" {
		return ProjectRef{Kind: RefSlug}
	}
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return ProjectRef{Kind: RefID, ID: id}
	}
	return ProjectRef{Kind: RefSlug, Slug: identifier}
}

// ProjectSource is the storage surface the resolver reads projects through
type ProjectSource interface {
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	GetBySlug(ctx context.Context, slug string) (*models.Project, error)
}

// Resolver maps path identifiers onto project records.
type Resolver struct {
	source ProjectSource
}

// NewResolver creates a Resolver over a project source
func NewResolver(source ProjectSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve looks up a project by raw identifier for a non-admin caller.
// Unknown identifiers and inactive projects both return ErrProjectNotFound.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*models.Project, error) {
	project, err := r.lookup(ctx, ParseRef(identifier))
	if err != nil {
		return nil, err
	}
	if project == nil || !project.IsActive() {
		telemetry.AuthFailuresTotal.WithLabelValues("project_not_found").Inc()
		return nil, ErrProjectNotFound
	}
	return project, nil
}

// ResolveAdmin looks up a project for the admin plane. Inactive projects are
// returned as-is; only a genuinely unknown identifier fails.
func (r *Resolver) ResolveAdmin(ctx context.Context, identifier string) (*models.Project, error) {
	project, err := r.lookup(ctx, ParseRef(identifier))
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (r *Resolver) lookup(ctx context.Context, ref ProjectRef) (*models.Project, error) {
	switch ref.Kind {
	case RefID:
		return r.source.GetByID(ctx, ref.ID)
	default:
		if ref.Slug == "" {
			return nil, nil
		}
		return r.source.GetBySlug(ctx, ref.Slug)
	}
}
