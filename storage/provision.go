package storage

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskboard/domain"
)

const mongoNamespaceExists = 48

// TaskSchema is the $jsonSchema validator enforcing task invariants inside MongoDB.
func TaskSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "status"},
			"properties": bson.M{
				"title": bson.M{
					"bsonType":  "string",
					"minLength": 1,
				},
				"point": bson.M{
					"bsonType": bson.A{"int", "long", "double"},
					"minimum":  domain.MinPoint,
					"maximum":  domain.MaxPoint,
				},
				"status": bson.M{
					"enum": bson.A{domain.StatusWIP.String(), domain.StatusDone.String()},
				},
			},
		},
	}
}

// EnsureMongoCollection creates the tasks collection with its validator, or
// installs the validator on an existing collection.
func EnsureMongoCollection(ctx context.Context, db *mongo.Database, name string) error {
	opts := options.CreateCollection().
		SetValidator(TaskSchema()).
		SetValidationLevel("strict").
		SetValidationAction("error")
	err := db.CreateCollection(ctx, name, opts)
	if err == nil {
		return nil
	}
	var ce mongo.CommandError
	if !errors.As(err, &ce) || ce.Code != mongoNamespaceExists {
		return err
	}
	return db.RunCommand(ctx, bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: TaskSchema()},
		{Key: "validationLevel", Value: "strict"},
		{Key: "validationAction", Value: "error"},
	}).Err()
}

// EnsureTables creates the named tables, ignoring ones that already exist.
func EnsureTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		c := svc.NewClient(name)
		_, err := c.CreateTable(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
	}
	return nil
}

// EnsureQueues creates the named queues, ignoring ones that already exist.
func EnsureQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		_, err = q.Create(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
				return err
			}
		}
	}
	return nil
}
