package model

const (
	ConversationTableName       = "conversation"
	ConversationMemberTableName = "conversation_member"

	ConversationTypeDirect int32 = 1
	ConversationTypeGroup  int32 = 2
	ConversationTypeSystem int32 = 3
)

// Conversation is the durable conversation head. CRUD around it (group
// screens, admin routes) lives outside this subsystem; the presence and
// messaging paths only read it.
type Conversation struct {
	ConversationID   string `bson:"conversation_id"`
	ConversationType int32  `bson:"conversation_type"`
	Title            string `bson:"title,omitempty"`
	OwnerUserID      string `bson:"owner_user_id,omitempty"`
	CreateTime       int64  `bson:"create_time"` // unix ms
}

func (*Conversation) GetTableName() string { return ConversationTableName }

// ConversationMember is one membership record, the source of truth the
// presence gateway consults before materializing liveness for a user.
type ConversationMember struct {
	ConversationID string `bson:"conversation_id"`
	UserID         string `bson:"user_id"` // unique with conversation_id
	RoleLevel      int32  `bson:"role_level"`
	JoinTime       int64  `bson:"join_time"` // unix ms
	Status         int32  `bson:"status"`    // 0=active,1=left,2=kicked
}

func (*ConversationMember) GetTableName() string { return ConversationMemberTableName }

const MemberStatusActive int32 = 0
