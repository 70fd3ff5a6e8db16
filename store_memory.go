package taskboard

import (
	"context"
	"strings"
	"sync"
)

// in-memory task store with the same contract as the mongo gateway.
// used by tests and by `taskboardctl serve --memory`.
// all records are deep copied on the way in and out so callers can
// never mutate stored state.
type MemoryTaskStore struct {
	mutex sync.Mutex
	tasks map[Id]*Task
	order []Id
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: map[Id]*Task{},
	}
}

func (self *MemoryTaskStore) Create(ctx context.Context, draft *TaskDraft) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	task := &Task{
		Id:          NewId(),
		Description: draft.Description,
		Status:      draft.Status,
	}
	if draft.Assignee != nil {
		assignee := *draft.Assignee
		task.Assignee = &assignee
	}

	self.tasks[task.Id] = task
	self.order = append(self.order, task.Id)
	return task.Copy(), nil
}

func (self *MemoryTaskStore) List(ctx context.Context) ([]*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	tasks := []*Task{}
	for _, taskId := range self.order {
		tasks = append(tasks, self.tasks[taskId].Copy())
	}
	return tasks, nil
}

func (self *MemoryTaskStore) FetchById(ctx context.Context, taskId Id) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	task, ok := self.tasks[taskId]
	if !ok {
		return nil, ErrNotFound
	}
	return task.Copy(), nil
}

func (self *MemoryTaskStore) UpdateById(ctx context.Context, taskId Id, update *TaskUpdate) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	task, ok := self.tasks[taskId]
	if !ok {
		return nil, ErrNotFound
	}
	update.ApplyTo(task)
	return task.Copy(), nil
}

func (self *MemoryTaskStore) DeleteById(ctx context.Context, taskId Id) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	if _, ok := self.tasks[taskId]; !ok {
		return false, ErrNotFound
	}
	delete(self.tasks, taskId)
	for i, orderedId := range self.order {
		if orderedId == taskId {
			self.order = append(self.order[:i], self.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// in-memory user store with the same contract as the mongo users gateway
type MemoryUserStore struct {
	mutex sync.Mutex
	users map[Id]*User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: map[Id]*User{},
	}
}

func (self *MemoryUserStore) Create(ctx context.Context, user *User) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	for _, existingUser := range self.users {
		if existingUser.Email == user.Email {
			return nil, ErrConflict
		}
	}

	userCopy := *user
	userCopy.Id = NewId()
	self.users[userCopy.Id] = &userCopy

	result := userCopy
	return &result, nil
}

func (self *MemoryUserStore) FetchByEmail(ctx context.Context, email string) (*User, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	email = strings.ToLower(email)
	for _, user := range self.users {
		if user.Email == email {
			userCopy := *user
			return &userCopy, nil
		}
	}
	return nil, ErrNotFound
}

func (self *MemoryUserStore) SetToken(ctx context.Context, userId Id, token string) error {
	if err := ctx.Err(); err != nil {
		return ErrUnavailable
	}

	self.mutex.Lock()
	defer self.mutex.Unlock()

	user, ok := self.users[userId]
	if !ok {
		return ErrNotFound
	}
	user.Token = token
	return nil
}
