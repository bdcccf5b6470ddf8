package storage

import (
	"chatrelay/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names follow the mongoose pluralised defaults.
const (
	usersCollection    = "users"
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

// MongoService is the MongoDB implementation of Storage.
type MongoService struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// NewMongoService connects to uri and pings the server before returning.
func NewMongoService(ctx context.Context, uri, database string) (*MongoService, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoService{Client: cli, DB: cli.Database(database)}, nil
}

// Close disconnects the client.
func (s *MongoService) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the queries below rely on.
func (s *MongoService) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll  string
		model mongo.IndexModel
	}{
		{usersCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		}},
		{chatsCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "members", Value: 1}},
			Options: options.Index().SetName("idx_members"),
		}},
		{messagesCollection, mongo.IndexModel{
			Keys:    bson.D{{Key: "chatId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_chat_msg"),
		}},
	}

	for _, idx := range indexes {
		if _, err := s.DB.Collection(idx.coll).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.coll, err)
		}
	}
	return nil
}

func (s *MongoService) CreateUser(ctx context.Context, user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	_ = user.BeforeCreate(nil)
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	if _, err := s.DB.Collection(usersCollection).InsertOne(ctx, user); err != nil {
		return mongoErr(err)
	}
	return nil
}

func (s *MongoService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.DB.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user); err != nil {
		return nil, mongoErr(err)
	}
	return &user, nil
}

func (s *MongoService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	filter := bson.M{"email": normalizeEmail(email)}
	if err := s.DB.Collection(usersCollection).FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mongoErr(err)
	}
	return &user, nil
}

func (s *MongoService) ListUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if err := s.findAll(ctx, usersCollection, bson.M{}, opts, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *MongoService) CreateChat(ctx context.Context, firstID, secondID string) (*models.Chat, bool, error) {
	if !validPair(firstID, secondID) {
		return nil, false, ErrInvalidMembers
	}

	existing, err := s.FindChat(ctx, firstID, secondID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	chat := models.NewChat(firstID, secondID)
	_ = chat.BeforeCreate(nil)
	now := time.Now().UTC()
	chat.CreatedAt, chat.UpdatedAt = now, now

	if _, err := s.DB.Collection(chatsCollection).InsertOne(ctx, chat); err != nil {
		return nil, false, mongoErr(err)
	}
	return chat, true, nil
}

func (s *MongoService) FindChat(ctx context.Context, firstID, secondID string) (*models.Chat, error) {
	if !validPair(firstID, secondID) {
		return nil, ErrInvalidMembers
	}
	var chat models.Chat
	filter := bson.M{"members": bson.M{"$all": bson.A{firstID, secondID}}}
	if err := s.DB.Collection(chatsCollection).FindOne(ctx, filter).Decode(&chat); err != nil {
		return nil, mongoErr(err)
	}
	return &chat, nil
}

func (s *MongoService) GetChatByID(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := s.DB.Collection(chatsCollection).FindOne(ctx, bson.M{"_id": chatID}).Decode(&chat); err != nil {
		return nil, mongoErr(err)
	}
	return &chat, nil
}

func (s *MongoService) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if err := s.findAll(ctx, chatsCollection, bson.M{"members": userID}, opts, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (s *MongoService) CreateMessage(ctx context.Context, chatID, senderID, text string) (*models.Message, error) {
	now := time.Now().UTC()
	msg := &models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_ = msg.BeforeCreate(nil)

	if _, err := s.DB.Collection(messagesCollection).InsertOne(ctx, msg); err != nil {
		return nil, mongoErr(err)
	}
	return msg, nil
}

func (s *MongoService) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	messages := make([]models.Message, 0)
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if err := s.findAll(ctx, messagesCollection, bson.M{"chatId": chatID}, opts, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MongoService) findAll(ctx context.Context, coll string, filter any, opts *options.FindOptions, out any) error {
	cur, err := s.DB.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return mongoErr(err)
	}
	if err := cur.All(ctx, out); err != nil {
		return mongoErr(err)
	}
	return nil
}

// mongoErr maps driver errors onto the package sentinels.
func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return fmt.Errorf("mongo: %w", err)
	}
}
