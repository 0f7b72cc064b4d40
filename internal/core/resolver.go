package core

import (
	"context"
	"errors"
	"fmt"
)

// Resolver maps an organization's natural key to its store reference,
// creating or updating the organization as a side effect.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve upserts the organization and returns its reference. The bool
// reports whether this call created it. Repeated calls with the same input
// return the same reference.
//
// Errors are ErrPersistence, or ErrStoreUnavailable when the store could
// not be reached. The caller must not write a posting after a failed resolve.
func (r *Resolver) Resolve(ctx context.Context, in OrganizationInput) (OrganizationRef, bool, error) {
	if in.Key == "" {
		return "", false, NewError(ErrPersistence, "organization key is empty", nil)
	}

	ref, created, err := r.store.UpsertOrganization(ctx, Organization{
		Key:      in.Key,
		Name:     in.Name,
		Industry: in.Industry,
	})
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return "", false, err
		}
		return "", false, Persistence(fmt.Sprintf("upsert organization %q", in.Key), err)
	}
	if ref == "" {
		return "", false, Persistence(fmt.Sprintf("upsert organization %q returned no reference", in.Key), nil)
	}

	return ref, created, nil
}
