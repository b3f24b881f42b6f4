package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kalambet/stagelog/internal/journal"
)

const showsCollection = "shows"

// ShowDocument is the cloud copy of a record, scoped to one user.
type ShowDocument struct {
	ID          string               `bson:"_id"`
	UserID      string               `bson:"user_id"`
	Title       string               `bson:"title"`
	Date        string               `bson:"date"`
	Time        string               `bson:"time"`
	Location    string               `bson:"location"`
	Price       float64              `bson:"price"`
	Cast        []journal.CastMember `bson:"cast"`
	PosterImage string               `bson:"poster_image"`
	SeatImage   string               `bson:"seat_image"`
	Notes       string               `bson:"notes"`
	Status      string               `bson:"status"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

// Record converts the document back to a journal record.
func (d ShowDocument) Record() journal.Record {
	return journal.Record{
		ID:          d.ID,
		Title:       d.Title,
		Date:        d.Date,
		Time:        d.Time,
		Location:    d.Location,
		Price:       journal.NewPrice(d.Price),
		PosterImage: d.PosterImage,
		SeatImage:   d.SeatImage,
		Cast:        d.Cast,
		Status:      journal.Status(d.Status),
		Notes:       d.Notes,
	}
}

// ShowPage is one page of a user's mirrored shows.
type ShowPage struct {
	List    []journal.Record `json:"list"`
	Total   int64            `json:"total"`
	Page    int64            `json:"page"`
	Limit   int64            `json:"limit"`
	HasMore bool             `json:"hasMore"`
}

// MongoStore mirrors records into a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to uri, pings the server and ensures the indexes of the
// shows collection in database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	m := &MongoStore{client: client, coll: client.Database(database).Collection(showsCollection)}
	if err := m.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Upsert creates or replaces the user's copy of rec. created_at is only
// written on insert.
func (m *MongoStore) Upsert(ctx context.Context, userID string, rec journal.Record) error {
	now := time.Now().UTC()
	cast := rec.Cast
	if cast == nil {
		cast = []journal.CastMember{}
	}
	set := bson.M{
		"user_id":      userID,
		"title":        rec.Title,
		"date":         rec.Date,
		"time":         rec.Time,
		"location":     rec.Location,
		"price":        rec.Price.Float64(),
		"cast":         cast,
		"poster_image": rec.PosterImage,
		"seat_image":   rec.SeatImage,
		"notes":        rec.Notes,
		"status":       string(rec.Status),
		"updated_at":   now,
	}
	_, err := m.coll.UpdateOne(ctx,
		bson.M{"_id": rec.ID, "user_id": userID},
		bson.M{"$set": set, "$setOnInsert": bson.M{"created_at": now}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upserting show %s: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the user's copy of id.
func (m *MongoStore) Delete(ctx context.Context, userID, id string) error {
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("deleting show %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns the user's copy of id.
func (m *MongoStore) Get(ctx context.Context, userID, id string) (journal.Record, error) {
	var doc ShowDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return journal.Record{}, ErrNotFound
	}
	if err != nil {
		return journal.Record{}, fmt.Errorf("finding show %s: %w", id, err)
	}
	return doc.Record(), nil
}

// List pages through the user's shows ordered by date. status may be
// "all" or empty to skip filtering. page starts at 1.
func (m *MongoStore) List(ctx context.Context, userID, status string, page, limit int64) (ShowPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	filter := bson.M{"user_id": userID}
	if status != "" && status != "all" {
		filter["status"] = status
	}

	skip := (page - 1) * limit
	cur, err := m.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		return ShowPage{}, fmt.Errorf("listing shows: %w", err)
	}
	var docs []ShowDocument
	if err := cur.All(ctx, &docs); err != nil {
		return ShowPage{}, fmt.Errorf("decoding shows: %w", err)
	}

	total, err := m.coll.CountDocuments(ctx, filter)
	if err != nil {
		return ShowPage{}, fmt.Errorf("counting shows: %w", err)
	}

	out := ShowPage{List: make([]journal.Record, len(docs)), Total: total, Page: page, Limit: limit}
	for i, d := range docs {
		out.List[i] = d.Record()
	}
	out.HasMore = skip+int64(len(docs)) < total
	return out, nil
}
