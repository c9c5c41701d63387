package message

import (
	"context"

	chatmodel "RProject/module/chat/model"
)

// Store is the opaque transactional keyed store behind the delivery
// tracker. Two implementations: mongo (production) and in-memory (tests,
// same contract).
type Store interface {
	// CreateMessage persists the message and exactly one status row per
	// participant as a single atomic unit. The sender's row is pre-acked
	// (delivered=read=created). Any failure leaves no partial rows.
	CreateMessage(ctx context.Context, m *chatmodel.MessageModel, participantIDs []string) error

	// MarkDelivered sets delivered_at=now only if currently unset.
	// Idempotent, first write wins; never an error on repeat.
	MarkDelivered(ctx context.Context, msgID, userID string, now int64) error

	// MarkRead implements "read up to here": for userID it stamps read_at
	// on every status row in the target message's conversation whose
	// message created_at <= the target's and whose read_at is unset.
	// A read row is by definition delivered, so delivered_at is filled
	// where still unset. Returns the number of rows stamped.
	MarkRead(ctx context.Context, msgID, userID string, now int64) (int64, error)

	// UnreadCount counts status rows for the user in the conversation with
	// read_at unset.
	UnreadCount(ctx context.Context, userID, conversationID string) (int64, error)

	GetMessage(ctx context.Context, msgID string) (*chatmodel.MessageModel, error)
	ListRecent(ctx context.Context, conversationID string, limit int64) ([]*chatmodel.MessageModel, error)
	ListStatuses(ctx context.Context, msgID string) ([]*chatmodel.MessageStatusModel, error)
}

// MembershipStore is the durable-membership collaborator. The presence
// gateway and the send path both fail closed on it.
type MembershipStore interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListParticipants(ctx context.Context, conversationID string) ([]string, error)
}

// ErrNotFound is returned by GetMessage for an unknown id.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "message not found" }
