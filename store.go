package taskboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// gateway contract over the backing document store.
// every operation is atomic at the single record level. no multi record
// transactions are assumed.
type TaskStore interface {
	// persists a new record. the store assigns the identity.
	// the returned record is the canonical state as read back from the store.
	Create(ctx context.Context, draft *TaskDraft) (*Task, error)
	// all records in store-defined order. an empty result is not an error.
	List(ctx context.Context) ([]*Task, error)
	FetchById(ctx context.Context, taskId Id) (*Task, error)
	// merges only the supplied fields into the existing record.
	// omitted fields are left untouched.
	// the returned record is the full merged canonical state.
	UpdateById(ctx context.Context, taskId Id, update *TaskUpdate) (*Task, error)
	// returns whether a record was actually removed.
	// a missing identity is `ErrNotFound`, never a silent false.
	DeleteById(ctx context.Context, taskId Id) (bool, error)
}

const TasksCollection = "tasks"
const UsersCollection = "users"

type MongoStoreSettings struct {
	ConnectTimeout time.Duration
}

func DefaultMongoStoreSettings() *MongoStoreSettings {
	return &MongoStoreSettings{
		ConnectTimeout: 5 * time.Second,
	}
}

type MongoTaskStore struct {
	tasks *mongo.Collection
}

func NewMongoTaskStore(db *mongo.Database) *MongoTaskStore {
	return &MongoTaskStore{
		tasks: db.Collection(TasksCollection),
	}
}

// dials the store and verifies it is reachable
func ConnectMongo(ctx context.Context, mongoUri string, settings *MongoStoreSettings) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, settings.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mongoUri))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	return client, nil
}

func (self *MongoTaskStore) Create(ctx context.Context, draft *TaskDraft) (*Task, error) {
	task := &Task{
		Id:          NewId(),
		Description: draft.Description,
		Status:      draft.Status,
		Assignee:    draft.Assignee,
	}

	if _, err := self.tasks.InsertOne(ctx, task); err != nil {
		return nil, mapMongoErr(err)
	}

	// read back the canonical record
	return self.FetchById(ctx, task.Id)
}

func (self *MongoTaskStore) List(ctx context.Context) ([]*Task, error) {
	cursor, err := self.tasks.Find(ctx, bson.M{})
	if err != nil {
		return nil, mapMongoErr(err)
	}
	defer cursor.Close(ctx)

	tasks := []*Task{}
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, mapMongoErr(err)
	}
	if len(tasks) == 0 {
		glog.V(2).Infof("[store]no tasks found\n")
	}
	return tasks, nil
}

func (self *MongoTaskStore) FetchById(ctx context.Context, taskId Id) (*Task, error) {
	task := &Task{}
	if err := self.tasks.FindOne(ctx, bson.M{"_id": taskId}).Decode(task); err != nil {
		return nil, mapMongoErr(err)
	}
	return task, nil
}

func (self *MongoTaskStore) UpdateById(ctx context.Context, taskId Id, update *TaskUpdate) (*Task, error) {
	setFields := update.SetFields()
	if len(setFields) == 0 {
		// nothing to merge. the canonical state is the existing record.
		return self.FetchById(ctx, taskId)
	}

	after := options.After
	result := self.tasks.FindOneAndUpdate(
		ctx,
		bson.M{"_id": taskId},
		bson.M{"$set": setFields},
		&options.FindOneAndUpdateOptions{
			ReturnDocument: &after,
		},
	)

	task := &Task{}
	if err := result.Decode(task); err != nil {
		return nil, mapMongoErr(err)
	}
	return task, nil
}

func (self *MongoTaskStore) DeleteById(ctx context.Context, taskId Id) (bool, error) {
	result, err := self.tasks.DeleteOne(ctx, bson.M{"_id": taskId})
	if err != nil {
		return false, mapMongoErr(err)
	}
	if result.DeletedCount == 0 {
		return false, ErrNotFound
	}
	return true, nil
}

func mapMongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrConflict
	default:
		// timeouts, network errors, and anything else the driver surfaces
		// are all a transient store failure to the caller
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
}
