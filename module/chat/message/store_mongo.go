package message

import (
	"context"

	mongoutil "RProject/data/database/mgo/mongoutil"
	chatmodel "RProject/module/chat/model"
	"RProject/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the production Store. Message + status creation goes
// through the session tx wrapper; everything else is single-document and
// needs no transaction.
type MongoStore struct {
	tx         mongoutil.Tx
	MsgColl    *mongo.Collection
	StatusColl *mongo.Collection
}

func NewMongoStore(db *mongo.Database, tx mongoutil.Tx) *MongoStore {
	msg := chatmodel.MessageModel{}
	st := chatmodel.MessageStatusModel{}
	return &MongoStore{
		tx:         tx,
		MsgColl:    db.Collection(msg.GetTableName()),
		StatusColl: db.Collection(st.GetTableName()),
	}
}

// EnsureIndexes creates the unique (msg_id, user_id) status index and the
// lookup indexes the read paths rely on. Call once at boot.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.MsgColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "msg_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return errs.WrapMsg(err, "create message indexes")
	}
	_, err = s.StatusColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "msg_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "conversation_id", Value: 1}, {Key: "read_at", Value: 1}}},
	})
	return errs.WrapMsg(err, "create message_status indexes")
}

func (s *MongoStore) CreateMessage(ctx context.Context, m *chatmodel.MessageModel, participantIDs []string) error {
	statuses := buildStatusRows(m, participantIDs)
	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.MsgColl.InsertOne(ctx, m); err != nil {
			return errs.WrapMsg(err, "insert message", "msgID", m.MsgID)
		}
		docs := make([]any, 0, len(statuses))
		for _, st := range statuses {
			docs = append(docs, st)
		}
		if len(docs) == 0 {
			return nil
		}
		if _, err := s.StatusColl.InsertMany(ctx, docs); err != nil {
			return errs.WrapMsg(err, "insert status rows", "msgID", m.MsgID)
		}
		return nil
	})
}

func (s *MongoStore) MarkDelivered(ctx context.Context, msgID, userID string, now int64) error {
	// first write wins: the filter only matches an unset row
	_, err := s.StatusColl.UpdateOne(ctx,
		bson.M{"msg_id": msgID, "user_id": userID, "delivered_at": 0},
		bson.M{"$set": bson.M{"delivered_at": now}},
	)
	return errs.Wrap(err)
}

func (s *MongoStore) MarkRead(ctx context.Context, msgID, userID string, now int64) (int64, error) {
	target, err := s.GetMessage(ctx, msgID)
	if err != nil {
		return 0, err
	}

	rangeFilter := bson.M{
		"user_id":         userID,
		"conversation_id": target.ConversationID,
		"msg_created_at":  bson.M{"$lte": target.CreatedAt},
		"read_at":         0,
	}

	// read implies delivered: backfill delivered_at on the rows about to be
	// stamped, before read_at flips the range filter off
	deliveredFilter := bson.M{
		"user_id":         userID,
		"conversation_id": target.ConversationID,
		"msg_created_at":  bson.M{"$lte": target.CreatedAt},
		"read_at":         0,
		"delivered_at":    0,
	}
	if _, err := s.StatusColl.UpdateMany(ctx, deliveredFilter, bson.M{"$set": bson.M{"delivered_at": now}}); err != nil {
		return 0, errs.Wrap(err)
	}

	res, err := s.StatusColl.UpdateMany(ctx, rangeFilter, bson.M{"$set": bson.M{"read_at": now}})
	if err != nil {
		return 0, errs.Wrap(err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoStore) UnreadCount(ctx context.Context, userID, conversationID string) (int64, error) {
	n, err := s.StatusColl.CountDocuments(ctx, bson.M{
		"user_id":         userID,
		"conversation_id": conversationID,
		"read_at":         0,
	})
	return n, errs.Wrap(err)
}

func (s *MongoStore) GetMessage(ctx context.Context, msgID string) (*chatmodel.MessageModel, error) {
	var m chatmodel.MessageModel
	err := s.MsgColl.FindOne(ctx, bson.M{"msg_id": msgID}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &m, nil
}

func (s *MongoStore) ListRecent(ctx context.Context, conversationID string, limit int64) ([]*chatmodel.MessageModel, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := s.MsgColl.Find(ctx,
		bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit),
	)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*chatmodel.MessageModel
	for cur.Next(ctx) {
		var m chatmodel.MessageModel
		if err := cur.Decode(&m); err != nil {
			return nil, errs.Wrap(err)
		}
		out = append(out, &m)
	}
	return out, errs.Wrap(cur.Err())
}

func (s *MongoStore) ListStatuses(ctx context.Context, msgID string) ([]*chatmodel.MessageStatusModel, error) {
	cur, err := s.StatusColl.Find(ctx, bson.M{"msg_id": msgID})
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []*chatmodel.MessageStatusModel
	for cur.Next(ctx) {
		var st chatmodel.MessageStatusModel
		if err := cur.Decode(&st); err != nil {
			return nil, errs.Wrap(err)
		}
		out = append(out, &st)
	}
	return out, errs.Wrap(cur.Err())
}

// buildStatusRows fans one message out to one row per participant, sender
// pre-acked.
func buildStatusRows(m *chatmodel.MessageModel, participantIDs []string) []*chatmodel.MessageStatusModel {
	seen := make(map[string]struct{}, len(participantIDs))
	out := make([]*chatmodel.MessageStatusModel, 0, len(participantIDs))
	for _, uid := range participantIDs {
		if uid == "" {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		st := &chatmodel.MessageStatusModel{
			MsgID:          m.MsgID,
			UserID:         uid,
			ConversationID: m.ConversationID,
			MsgCreatedAt:   m.CreatedAt,
		}
		if uid == m.SenderID {
			// self-receipt
			st.DeliveredAt = m.CreatedAt
			st.ReadAt = m.CreatedAt
		}
		out = append(out, st)
	}
	return out
}

// MongoMembership reads the durable membership table.
type MongoMembership struct {
	MemberColl *mongo.Collection
}

func NewMongoMembership(db *mongo.Database) *MongoMembership {
	mem := chatmodel.ConversationMember{}
	return &MongoMembership{MemberColl: db.Collection(mem.GetTableName())}
}

func (m *MongoMembership) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	n, err := m.MemberColl.CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
		"user_id":         userID,
		"status":          chatmodel.MemberStatusActive,
	})
	if err != nil {
		return false, errs.Wrap(err)
	}
	return n > 0, nil
}

func (m *MongoMembership) ListParticipants(ctx context.Context, conversationID string) ([]string, error) {
	cur, err := m.MemberColl.Find(ctx,
		bson.M{"conversation_id": conversationID, "status": chatmodel.MemberStatusActive},
		options.Find().SetProjection(bson.M{"user_id": 1}),
	)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	defer func() { _ = cur.Close(ctx) }()
	var out []string
	for cur.Next(ctx) {
		var row chatmodel.ConversationMember
		if err := cur.Decode(&row); err != nil {
			return nil, errs.Wrap(err)
		}
		out = append(out, row.UserID)
	}
	return out, errs.Wrap(cur.Err())
}
