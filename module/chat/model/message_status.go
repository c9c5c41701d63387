package model

const MessageStatusTableName = "message_status"

// MessageStatusModel is the per-recipient acknowledgement row, exactly one
// per (message, participant), created in the same transaction as its
// message. ConversationID and MsgCreatedAt are denormalized from the parent
// message so cumulative read updates are a single range UpdateMany.
//
// DeliveredAt/ReadAt are unix ms, 0 = not yet. Once set they never move
// backward and are never cleared.
type MessageStatusModel struct {
	MsgID          string `bson:"msg_id" json:"messageId"`
	UserID         string `bson:"user_id" json:"userId"` // unique with msg_id
	ConversationID string `bson:"conversation_id" json:"conversationId"`
	MsgCreatedAt   int64  `bson:"msg_created_at" json:"-"`
	DeliveredAt    int64  `bson:"delivered_at" json:"deliveredAt,omitempty"`
	ReadAt         int64  `bson:"read_at" json:"readAt,omitempty"`
}

func (*MessageStatusModel) GetTableName() string { return MessageStatusTableName }

func (s *MessageStatusModel) IsDelivered() bool { return s.DeliveredAt > 0 }
func (s *MessageStatusModel) IsRead() bool      { return s.ReadAt > 0 }
