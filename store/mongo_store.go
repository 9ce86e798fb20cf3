package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"auto_social_publisher/workflow"
)

const mongoTimeout = 5 * time.Second

// MongoStore keeps the active workflow as one document.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore uses dbName (default "autopost") and collection "workflows".
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	if dbName == "" {
		dbName = "autopost"
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(dbName).Collection("workflows"),
	}
}

type mongoWorkflowDoc struct {
	ID          string    `bson:"_id"`
	WorkflowID  string    `bson:"workflow_id"`
	CurrentStep string    `bson:"current_step"`
	Payload     []byte    `bson:"payload"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func (s *MongoStore) Load(ctx context.Context) (workflow.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	var doc mongoWorkflowDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": activeKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return workflow.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return decodeSnapshot(doc.Payload)
}

func (s *MongoStore) Save(ctx context.Context, snap workflow.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	payload, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	doc := mongoWorkflowDoc{
		ID:          activeKey,
		WorkflowID:  snap.ID,
		CurrentStep: string(snap.CurrentStep),
		Payload:     payload,
		UpdatedAt:   time.Now().UTC(),
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": activeKey}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
