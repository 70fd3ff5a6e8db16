package taskboard

import (
	"context"
	"time"

	"github.com/golang/glog"
)

type TaskManagerSettings struct {
	// budget for a single store operation.
	// a store call that exceeds this surfaces `ErrUnavailable` and
	// never proceeds to broadcast.
	StoreTimeout time.Duration
}

func DefaultTaskManagerSettings() *TaskManagerSettings {
	return &TaskManagerSettings{
		StoreTimeout: 5 * time.Second,
	}
}

// the mutation pipeline. for each mutation:
// validate -> persist -> canonicalize -> emit -> broadcast -> respond.
// any step's failure is terminal: the typed error goes back to the
// caller and no broadcast happens. broadcast only follows confirmed
// persistence, and its outcome never affects the response.
//
// per-identity ordering is not serialized here. two concurrent updates
// to the same identity race at the store, last write wins, and each
// triggers its own broadcast of the canonical state at its own commit
// time.
type TaskManager struct {
	ctx    context.Context
	cancel context.CancelFunc

	store       TaskStore
	validator   *TaskValidator
	broadcaster *Broadcaster

	settings *TaskManagerSettings
}

func NewTaskManagerWithDefaults(
	ctx context.Context,
	store TaskStore,
	registry *ConnRegistry,
) *TaskManager {
	return NewTaskManager(ctx, store, registry, DefaultTaskManagerSettings())
}

func NewTaskManager(
	ctx context.Context,
	store TaskStore,
	registry *ConnRegistry,
	settings *TaskManagerSettings,
) *TaskManager {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &TaskManager{
		ctx:         cancelCtx,
		cancel:      cancel,
		store:       store,
		validator:   NewTaskValidator(),
		broadcaster: NewBroadcaster(registry),
		settings:    settings,
	}
}

func (self *TaskManager) Close() {
	self.cancel()
}

func (self *TaskManager) ListTasks(ctx context.Context) ([]*Task, error) {
	storeCtx, cancel := self.storeCtx(ctx)
	defer cancel()
	return self.store.List(storeCtx)
}

func (self *TaskManager) AddTask(ctx context.Context, payload []byte) (*Task, error) {
	draft, err := self.validator.ValidateCreate(payload)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := self.storeCtx(ctx)
	defer cancel()

	task, err := self.store.Create(storeCtx, draft)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("[task]add %s\n", task.Id)

	self.broadcaster.Broadcast(NewTaskAddedEvent(task))
	return task, nil
}

func (self *TaskManager) UpdateTask(ctx context.Context, taskId Id, payload []byte) (*Task, error) {
	update, err := self.validator.ValidateUpdate(payload)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := self.storeCtx(ctx)
	defer cancel()

	// the gateway returns the full merged record, so the event always
	// reflects what is durable and never just the fields the caller sent
	task, err := self.store.UpdateById(storeCtx, taskId, update)
	if err != nil {
		return nil, err
	}
	glog.V(2).Infof("[task]update %s\n", task.Id)

	self.broadcaster.Broadcast(NewTaskUpdatedEvent(task))
	return task, nil
}

func (self *TaskManager) DeleteTask(ctx context.Context, taskId Id) (bool, error) {
	storeCtx, cancel := self.storeCtx(ctx)
	defer cancel()

	// a delete of a missing identity is `ErrNotFound`, not a silent success
	removed, err := self.store.DeleteById(storeCtx, taskId)
	if err != nil {
		return false, err
	}
	glog.V(2).Infof("[task]delete %s\n", taskId)

	self.broadcaster.Broadcast(NewTaskDeletedEvent(taskId))
	return removed, nil
}

func (self *TaskManager) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = self.ctx
	}
	return context.WithTimeout(ctx, self.settings.StoreTimeout)
}
