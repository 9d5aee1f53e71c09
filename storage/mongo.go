package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard/domain"
)

const mongoDocumentValidationFailure = 121

// Mongo stores tasks in a MongoDB collection. The client is connected lazily
// on first use and shared for the life of the process.
type Mongo struct {
	uri        string
	database   string
	collection string
	timeout    time.Duration

	once   sync.Once
	client *mongo.Client
	coll   *mongo.Collection
	err    error
}

// NewMongo creates a Mongo store. No connection is made until the first call.
func NewMongo(uri, database, collection string, timeout time.Duration) *Mongo {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Mongo{uri: uri, database: database, collection: collection, timeout: timeout}
}

func newMongoFromCollection(coll *mongo.Collection) *Mongo {
	m := &Mongo{coll: coll, timeout: 10 * time.Second}
	m.once.Do(func() {})
	return m
}

type taskDocument struct {
	ID     primitive.ObjectID `bson:"_id,omitempty"`
	Title  string             `bson:"title"`
	Point  *int               `bson:"point,omitempty"`
	Status string             `bson:"status"`
}

func (d taskDocument) toTask() (domain.Task, error) {
	status, err := domain.ParseStatus(d.Status)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", d.ID.Hex(), err)
	}
	return domain.Task{ID: d.ID.Hex(), Title: d.Title, Point: d.Point, Status: status}, nil
}

func (m *Mongo) tasks() (*mongo.Collection, error) {
	m.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		opts := options.Client().ApplyURI(m.uri).SetConnectTimeout(m.timeout)
		m.client, m.err = mongo.Connect(ctx, opts)
		if m.err != nil {
			m.err = fmt.Errorf("mongo connect: %w", m.err)
			return
		}
		m.coll = m.client.Database(m.database).Collection(m.collection)
		log.WithFields(log.Fields{"database": m.database, "collection": m.collection}).Info("mongo client initialized")
	})
	return m.coll, m.err
}

// Collection exposes the underlying collection for provisioning.
func (m *Mongo) Collection() (*mongo.Collection, error) {
	return m.tasks()
}

// ListTasks returns every task in creation order.
func (m *Mongo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	coll, err := m.tasks()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	var docs []taskDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	tasks := make([]domain.Task, 0, len(docs))
	for _, d := range docs {
		t, err := d.toTask()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CreateTask inserts t and returns it with the ID assigned by MongoDB.
func (m *Mongo) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	coll, err := m.tasks()
	if err != nil {
		return domain.Task{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	doc := taskDocument{Title: t.Title, Point: t.Point, Status: t.Status.String()}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return domain.Task{}, mongoError("insert task", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return domain.Task{}, fmt.Errorf("insert task: unexpected id type %T", res.InsertedID)
	}
	t.ID = id.Hex()
	return t, nil
}

// UpdateTask merges patch into the task with the given ID and returns the
// stored result.
func (m *Mongo) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) (domain.Task, error) {
	if err := patch.Validate(); err != nil {
		return domain.Task{}, err
	}
	oid, err := parseObjectID(id)
	if err != nil {
		return domain.Task{}, err
	}
	coll, err := m.tasks()
	if err != nil {
		return domain.Task{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	set := bson.D{}
	if patch.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *patch.Title})
	}
	if patch.Point != nil {
		set = append(set, bson.E{Key: "point", Value: *patch.Point})
	}
	if patch.Status != nil {
		set = append(set, bson.E{Key: "status", Value: patch.Status.String()})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc taskDocument
	err = coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Task{}, fmt.Errorf("update task %s: %w", id, domain.ErrNotFound)
		}
		return domain.Task{}, mongoError("update task "+id, err)
	}
	return doc.toTask()
}

// DeleteTask removes the task if it exists. Deleting a missing task succeeds.
func (m *Mongo) DeleteTask(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	coll, err := m.tasks()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		log.WithField("task", id).Debug("delete matched no task")
	}
	return nil
}

// Ping checks that the deployment is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	if _, err := m.tasks(); err != nil {
		return err
	}
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client if it was ever connected.
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	return oid, nil
}

func mongoError(op string, err error) error {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == mongoDocumentValidationFailure {
				return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidTask, e.Message)
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == mongoDocumentValidationFailure {
		return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidTask, ce.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
