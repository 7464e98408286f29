package inbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "app_inbox"

type record struct {
	EventID    string    `bson:"event_id"`
	Consumer   string    `bson:"consumer"`
	ReceivedAt time.Time `bson:"received_at"`
}

// Store deduplicates broker deliveries per consumer. Marks older than the
// retention are purged by Mongo, after which a replayed event is handled again.
type Store struct {
	col      *mongo.Collection
	consumer string
	now      func() time.Time
}

func NewStore(db *mongo.Database, consumer string, retention time.Duration) *Store {
	col := db.Collection(collection)
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if retention > 0 {
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		})
	}
	_, _ = col.Indexes().CreateMany(context.Background(), models)
	return &Store{col: col, consumer: consumer, now: func() time.Time { return time.Now().UTC() }}
}

// Seen records eventID and reports whether this consumer already had it.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := s.col.InsertOne(ctx, record{EventID: eventID, Consumer: s.consumer, ReceivedAt: s.now()})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, err
	}
}

// Forget removes the mark after a failed attempt so redelivery is processed.
func (s *Store) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.D{{Key: "event_id", Value: eventID}, {Key: "consumer", Value: s.consumer}})
	return err
}
