// Package authz decides whether a membership mutation is permitted. It is a
// pure function over a membership snapshot; callers must evaluate it against
// the same snapshot they mutate, inside one transaction, so a stale approval
// never survives a concurrent conflicting change.
package authz

import (
	"fmt"

	"hrchat-service/internal/chaterr"
	"hrchat-service/internal/models"
)

// Action is a membership mutation subject to authorization.
type Action int

const (
	ActionAddMembers Action = iota
	ActionRemoveMember
	ActionMakeAdmin
	ActionLeave
)

func (a Action) String() string {
	switch a {
	case ActionAddMembers:
		return "add_members"
	case ActionRemoveMember:
		return "remove_member"
	case ActionMakeAdmin:
		return "make_admin"
	case ActionLeave:
		return "leave"
	}
	return "unknown"
}

// Decide returns nil when the actor may perform the action on the chat whose
// current membership is members, or a taxonomy error explaining the denial.
// target is ignored for ActionAddMembers and ActionLeave.
func Decide(kind models.ChatKind, members []models.Membership, actorID int64, action Action, targetID int64) error {
	actor, ok := find(members, actorID)
	if !ok {
		return chaterr.ErrNotAMember
	}

	if kind == models.ChatKindDirect {
		// Direct chats have a fixed pair; the only mutation is a leave,
		// which dissolves the chat for both parties.
		if action != ActionLeave {
			return fmt.Errorf("%w: direct chats do not support %s", chaterr.ErrInvalidChatKind, action)
		}
		return nil
	}

	switch action {
	case ActionAddMembers:
		if !actor.IsAdmin {
			return chaterr.ErrInsufficientRole
		}
		return nil

	case ActionRemoveMember:
		if !actor.IsAdmin {
			return chaterr.ErrInsufficientRole
		}
		if targetID == actorID {
			return fmt.Errorf("%w: use leave for self-removal", chaterr.ErrInvalidChatKind)
		}
		if _, ok := find(members, targetID); !ok {
			return fmt.Errorf("%w: target is not a member", chaterr.ErrNotFound)
		}
		// The last remaining admin is always the actor here (actor must be
		// an admin and target differs), so the sole-admin guard lives in
		// ActionLeave.
		return nil

	case ActionMakeAdmin:
		if !actor.IsAdmin {
			return chaterr.ErrInsufficientRole
		}
		if _, ok := find(members, targetID); !ok {
			return fmt.Errorf("%w: target is not a member", chaterr.ErrNotFound)
		}
		// Promoting an existing admin is an idempotent no-op.
		return nil

	case ActionLeave:
		if actor.IsAdmin && adminCount(members) == 1 && len(members) > 1 {
			return chaterr.ErrMustTransferAdminFirst
		}
		return nil
	}

	return fmt.Errorf("%w: unknown action", chaterr.ErrInvalidChatKind)
}

func find(members []models.Membership, userID int64) (models.Membership, bool) {
	for _, m := range members {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.Membership{}, false
}

func adminCount(members []models.Membership) int {
	n := 0
	for _, m := range members {
		if m.IsAdmin {
			n++
		}
	}
	return n
}
