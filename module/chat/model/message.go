package model

const (
	MessageTableName = "message"

	// ContentType values carried on the wire and in storage.
	ContentTypeText  int32 = 1
	ContentTypeImage int32 = 2
	ContentTypeAudio int32 = 3
	ContentTypeFile  int32 = 4
)

// MessageModel is one durable message in the log. Immutable after creation
// (soft moderation fields excepted, not modeled here).
type MessageModel struct {
	MsgID          string `bson:"msg_id" json:"id"`                     // server-assigned snowflake
	ConversationID string `bson:"conversation_id" json:"conversationId"`
	SenderID       string `bson:"sender_id" json:"senderId"`
	ContentType    int32  `bson:"content_type" json:"type"`
	Content        string `bson:"content" json:"text,omitempty"`
	MediaURL       string `bson:"media_url,omitempty" json:"mediaUrl,omitempty"`
	CreatedAt      int64  `bson:"created_at" json:"createdAt"` // unix ms
}

func (*MessageModel) GetTableName() string { return MessageTableName }
