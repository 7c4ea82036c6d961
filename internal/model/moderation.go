package model

import "time"

// ModerationAction is a moderation verb accepted by the backend.
type ModerationAction string

const (
	ModerationApprove             ModerationAction = "APPROVE"
	ModerationReject              ModerationAction = "REJECT"
	ModerationSuspend             ModerationAction = "SUSPEND"
	ModerationUnsuspendToApproved ModerationAction = "UNSUSPEND_TO_APPROVED"
	ModerationUnsuspendToPending  ModerationAction = "UNSUSPEND_TO_PENDING"
)

// RequiresReason reports whether the action must carry a reason.
func (a ModerationAction) RequiresReason() bool {
	return a == ModerationReject || a == ModerationSuspend
}

// UserStatus is the moderation status of an account.
type UserStatus string

const (
	UserStatusPending   UserStatus = "PENDING"
	UserStatusApproved  UserStatus = "APPROVED"
	UserStatusRejected  UserStatus = "REJECTED"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// ModerateRequest is the body of POST /api/admin/users/{clerkId}/moderate.
// Version must match the server's current version of the user record.
type ModerateRequest struct {
	Action  ModerationAction `json:"action" validate:"required,oneof=APPROVE REJECT SUSPEND UNSUSPEND_TO_APPROVED UNSUSPEND_TO_PENDING"`
	Reason  string           `json:"reason,omitempty" validate:"omitempty,max=1000"`
	Version int              `json:"version" validate:"min=0"`
}

// ModerateResponse is the backend's view of the user after moderation.
type ModerateResponse struct {
	ClerkID     string     `json:"clerkId"`
	Status      UserStatus `json:"status"`
	Version     int        `json:"version"`
	Reason      string     `json:"reason,omitempty"`
	ModeratedAt *time.Time `json:"moderatedAt,omitempty"`
}
