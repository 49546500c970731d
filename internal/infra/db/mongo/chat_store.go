package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "parley/internal/domain/chat"
)

// ChatStore persists conversations and messages in Mongo. The partial unique
// index on direct_key is what closes the check-then-create race for direct
// conversations: the losing insert surfaces as a duplicate-key error which
// callers treat as "already exists".
type ChatStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

func (s *ChatStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "direct_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"direct_key": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "member_ids", Value: 1}, {Key: "last_message_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("conversation indexes: %w", err)
	}
	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("message indexes: %w", err)
	}
	return nil
}

func (s *ChatStore) CreateConversation(ctx context.Context, conversation *domainchat.Conversation) error {
	doc := newConversationDocument(conversation)
	if _, err := s.conversations.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainchat.ErrDirectExists
		}
		return err
	}
	return nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var doc conversationDocument
	if err := s.conversations.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toConversation(), nil
}

func (s *ChatStore) FindDirectConversation(ctx context.Context, userA, userB string) (*domainchat.Conversation, error) {
	var doc conversationDocument
	err := s.conversations.FindOne(ctx, bson.M{"direct_key": domainchat.DirectKey(userA, userB)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrNotFound
		}
		return nil, err
	}
	return doc.toConversation(), nil
}

func (s *ChatStore) ListConversations(ctx context.Context, memberID string) ([]domainchat.Summary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := s.conversations.Find(ctx, bson.M{"member_ids": memberID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]domainchat.Summary, 0)
	for cursor.Next(ctx) {
		var doc conversationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		summary := domainchat.Summary{Conversation: *doc.toConversation()}
		latest, err := s.latestMessage(ctx, summary.Conversation.ID)
		if err != nil {
			return nil, err
		}
		summary.LatestMessage = latest
		out = append(out, summary)
	}
	return out, cursor.Err()
}

func (s *ChatStore) latestMessage(ctx context.Context, conversationID domainchat.ConversationID) (*domainchat.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var doc messageDocument
	err := s.messages.FindOne(ctx, bson.M{"conversation_id": string(conversationID)}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toMessage(), nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, message *domainchat.Message) error {
	if _, err := s.messages.InsertOne(ctx, newMessageDocument(message)); err != nil {
		return err
	}
	res, err := s.conversations.UpdateOne(ctx,
		bson.M{"_id": string(message.ConversationID)},
		bson.M{"$set": bson.M{"last_message_at": message.CreatedAt.UnixMilli()}},
	)
	if err != nil {
		return fmt.Errorf("update conversation recency: %w", err)
	}
	if res.MatchedCount == 0 {
		return domainchat.ErrNotFound
	}
	return nil
}

func (s *ChatStore) ListMessages(ctx context.Context, conversationID domainchat.ConversationID, limit int, before time.Time) ([]domainchat.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := bson.M{"conversation_id": string(conversationID)}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before.UnixMilli()}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeMessages(ctx, cursor)
}

func (s *ChatStore) UnseenMessages(ctx context.Context, conversationID domainchat.ConversationID, userID string) ([]domainchat.Message, error) {
	filter := bson.M{
		"conversation_id": string(conversationID),
		"sender_id":       bson.M{"$ne": userID},
		"seen_by":         bson.M{"$ne": userID},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	return decodeMessages(ctx, cursor)
}

func (s *ChatStore) AddMessageSeen(ctx context.Context, message *domainchat.Message, userID string) (*domainchat.Message, error) {
	filter := bson.M{"_id": string(message.ID), "conversation_id": string(message.ConversationID)}
	update := bson.M{"$addToSet": bson.M{"seen_by": userID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDocument
	if err := s.messages.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, err
	}
	return doc.toMessage(), nil
}

func decodeMessages(ctx context.Context, cursor *mongo.Cursor) ([]domainchat.Message, error) {
	out := make([]domainchat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, *doc.toMessage())
	}
	return out, cursor.Err()
}

type conversationDocument struct {
	ID            string   `bson:"_id"`
	IsGroup       bool     `bson:"is_group"`
	Name          string   `bson:"name,omitempty"`
	MemberIDs     []string `bson:"member_ids"`
	DirectKey     *string  `bson:"direct_key,omitempty"`
	CreatedAt     int64    `bson:"created_at"`
	LastMessageAt int64    `bson:"last_message_at"`
}

func newConversationDocument(c *domainchat.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:            string(c.ID),
		IsGroup:       c.IsGroup,
		Name:          c.Name,
		MemberIDs:     append([]string(nil), c.MemberIDs...),
		CreatedAt:     c.CreatedAt.UnixMilli(),
		LastMessageAt: c.LastMessageAt.UnixMilli(),
	}
	if key := c.DirectKey(); key != "" {
		doc.DirectKey = &key
	}
	return doc
}

func (d conversationDocument) toConversation() *domainchat.Conversation {
	return &domainchat.Conversation{
		ID:            domainchat.ConversationID(d.ID),
		IsGroup:       d.IsGroup,
		Name:          d.Name,
		MemberIDs:     append([]string(nil), d.MemberIDs...),
		CreatedAt:     time.UnixMilli(d.CreatedAt).UTC(),
		LastMessageAt: time.UnixMilli(d.LastMessageAt).UTC(),
	}
}

type messageDocument struct {
	ID             string   `bson:"_id"`
	ConversationID string   `bson:"conversation_id"`
	SenderID       string   `bson:"sender_id"`
	Body           string   `bson:"body,omitempty"`
	Image          string   `bson:"image,omitempty"`
	SeenBy         []string `bson:"seen_by"`
	CreatedAt      int64    `bson:"created_at"`
}

func newMessageDocument(m *domainchat.Message) messageDocument {
	return messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       m.SenderID,
		Body:           m.Body,
		Image:          m.Image,
		SeenBy:         append([]string(nil), m.SeenBy...),
		CreatedAt:      m.CreatedAt.UnixMilli(),
	}
}

func (d messageDocument) toMessage() *domainchat.Message {
	return &domainchat.Message{
		ID:             domainchat.MessageID(d.ID),
		ConversationID: domainchat.ConversationID(d.ConversationID),
		SenderID:       d.SenderID,
		Body:           d.Body,
		Image:          d.Image,
		SeenBy:         append([]string(nil), d.SeenBy...),
		CreatedAt:      time.UnixMilli(d.CreatedAt).UTC(),
	}
}
