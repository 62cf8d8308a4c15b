package db

import (
	"context"
	"fmt"
	"time"

	"tunefind/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoTimeout = 10 * time.Second

type MongoClient struct {
	client *mongo.Client
	beats  *mongo.Collection
}

func NewMongoClient(uri, dbName string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %s", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("error pinging MongoDB: %s", err)
	}

	beats := client.Database(dbName).Collection("beats")
	_, err = beats.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "content_hash", Value: 1}}},
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("error creating indexes: %s", err)
	}

	return &MongoClient{client: client, beats: beats}, nil
}

func (db *MongoClient) Close() error {
	if db.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
		defer cancel()
		return db.client.Disconnect(ctx)
	}
	return nil
}

// mongoBeat adds the insertion sequence used for ordering.
type mongoBeat struct {
	models.Beat `bson:",inline"`
	Seq         int64 `bson:"seq"`
}

func (db *MongoClient) StoreBeat(beat models.Beat) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	if beat.CreatedAt.IsZero() {
		beat.CreatedAt = time.Now().UTC()
	}
	doc := mongoBeat{Beat: beat, Seq: time.Now().UnixNano()}

	// a replaced beat gets a fresh seq and moves to the end
	_, err := db.beats.ReplaceOne(ctx,
		bson.M{"_id": beat.BeatID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("error storing beat: %s", err)
	}
	return nil
}

func (db *MongoClient) findOne(filter bson.M) (models.Beat, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	var doc mongoBeat
	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: 1}})
	err := db.beats.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Beat{}, false, nil
		}
		return models.Beat{}, false, fmt.Errorf("failed to retrieve beat: %s", err)
	}
	return doc.Beat, true, nil
}

func (db *MongoClient) GetBeat(ownerID, beatID string) (models.Beat, bool, error) {
	return db.findOne(bson.M{"_id": beatID, "owner_id": ownerID})
}

func (db *MongoClient) FindByContentHash(ownerID, hash string) (models.Beat, bool, error) {
	if hash == "" {
		return models.Beat{}, false, nil
	}
	return db.findOne(bson.M{"owner_id": ownerID, "content_hash": hash})
}

func (db *MongoClient) findMany(filter bson.M) ([]models.Beat, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	cursor, err := db.beats.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("error querying beats: %s", err)
	}
	defer cursor.Close(ctx)

	beats := []models.Beat{}
	for cursor.Next(ctx) {
		var doc mongoBeat
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("error decoding beat: %s", err)
		}
		beats = append(beats, doc.Beat)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beats: %s", err)
	}
	return beats, nil
}

func (db *MongoClient) ListBeats(ownerID string) ([]models.Beat, error) {
	return db.findMany(bson.M{"owner_id": ownerID})
}

func (db *MongoClient) AllBeats() ([]models.Beat, error) {
	return db.findMany(bson.M{})
}

func (db *MongoClient) DeleteBeat(ownerID, beatID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	res, err := db.beats.DeleteOne(ctx, bson.M{"_id": beatID, "owner_id": ownerID})
	if err != nil {
		return false, fmt.Errorf("failed to delete beat: %v", err)
	}
	return res.DeletedCount > 0, nil
}

func (db *MongoClient) DeleteBeats(ownerID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	res, err := db.beats.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete beats: %v", err)
	}
	return int(res.DeletedCount), nil
}

func (db *MongoClient) TotalBeats() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoTimeout)
	defer cancel()

	count, err := db.beats.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("error counting beats: %s", err)
	}
	return int(count), nil
}
