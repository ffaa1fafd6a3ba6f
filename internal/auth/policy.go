package auth

import (
	"context"
	"errors"
	"fmt"
)

// rolePolicy is the per-role access contract. The set of implementations is
// closed over {admin, director, user}; the matrix is enumerable in tests.
type rolePolicy interface {
	canAccess(resourceType ResourceType, action Action, isOwner bool) bool
}

type adminPolicy struct{}
type directorPolicy struct{}
type userPolicy struct{}

// Admins may do anything on any resource.
func (adminPolicy) canAccess(ResourceType, Action, bool) bool { return true }

// Directors read any proposal, but write and delete only their own.
// Account records are self-service only.
func (directorPolicy) canAccess(rt ResourceType, action Action, isOwner bool) bool {
	switch rt {
	case ResourceProposal:
		if action == ActionRead {
			return true
		}
		return isOwner
	case ResourceAccount:
		return isOwner
	default:
		return false
	}
}

// Users touch a resource only when they own it, whatever the action.
func (userPolicy) canAccess(rt ResourceType, action Action, isOwner bool) bool {
	switch rt {
	case ResourceProposal, ResourceAccount:
		return isOwner
	default:
		return false
	}
}

func policyFor(role Role) (rolePolicy, bool) {
	switch role {
	case RoleAdmin:
		return adminPolicy{}, true
	case RoleDirector:
		return directorPolicy{}, true
	case RoleUser:
		return userPolicy{}, true
	default:
		return nil, false
	}
}

// Evaluator decides allow/deny for a live account against a declared policy.
// The coarse role gate runs first so role-only checks never hit the store;
// ownership resolution is reserved for per-record decisions.
type Evaluator struct {
	ownership OwnershipStore
}

// NewEvaluator builds an evaluator over the given ownership lookups.
func NewEvaluator(ownership OwnershipStore) *Evaluator {
	return &Evaluator{ownership: ownership}
}

// ResolveOwnership reports whether accountID is the recorded owner of the
// resource. Account resources degenerate to a self comparison without a
// store query; unknown resource types resolve false. A missing resource
// surfaces ErrResourceNotFound.
func (e *Evaluator) ResolveOwnership(ctx context.Context, accountID string, resourceType ResourceType, resourceID string) (bool, error) {
	switch resourceType {
	case ResourceAccount:
		return accountID != "" && accountID == resourceID, nil
	case ResourceProposal:
		owner, err := e.ownership.FindResourceOwner(ctx, resourceType, resourceID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, fmt.Errorf("%w: %s %s", ErrResourceNotFound, resourceType, resourceID)
			}
			return false, fmt.Errorf("resolve ownership: %w", err)
		}
		return owner == accountID, nil
	default:
		return false, nil
	}
}

// Authorize applies the two-stage check: the declared role gate, then the
// per-role policy with ownership resolved only when the outcome depends on
// it. A nil error with Allowed=false is a plain denial; errors are reserved
// for missing resources and infrastructure failures.
func (e *Evaluator) Authorize(ctx context.Context, account *Account, pol Policy) (Decision, error) {
	if account == nil {
		return deny(DenyTokenInvalid, "invalid token"), nil
	}
	if len(pol.RequiredRoles) > 0 && !roleIn(account.Role, pol.RequiredRoles) {
		return deny(DenyInsufficientRole, "insufficient role"), nil
	}
	if pol.Resource == nil {
		return allow(), nil
	}

	rp, ok := policyFor(account.Role)
	if !ok {
		return deny(DenyInsufficientRole, "unknown role"), nil
	}

	res := *pol.Resource
	if rp.canAccess(res.Type, res.Action, false) {
		// Access does not depend on ownership; skip the lookup.
		return allow(), nil
	}
	if !rp.canAccess(res.Type, res.Action, true) {
		// Not even the owner may do this with that role.
		return deny(DenyOwnership, ownershipReason(res)), nil
	}

	isOwner, err := e.ResolveOwnership(ctx, account.ID, res.Type, res.ID)
	if err != nil {
		return Decision{}, err
	}
	if !isOwner {
		return deny(DenyOwnership, ownershipReason(res)), nil
	}
	return allow(), nil
}

func ownershipReason(res ResourceRef) string {
	switch res.Type {
	case ResourceProposal:
		if res.Action == ActionRead {
			return "you can only view your own proposals"
		}
		return "you can only modify your own proposals"
	case ResourceAccount:
		return "you can only manage your own account"
	default:
		return "not the resource owner"
	}
}

func roleIn(role Role, set []Role) bool {
	for _, r := range set {
		if r == role {
			return true
		}
	}
	return false
}
