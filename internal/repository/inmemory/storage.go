package inmemory

import (
	"sync"

	"streakTracker/internal/models/task"
	"streakTracker/internal/models/user"

	"github.com/google/uuid"
)

// Storage keeps tasks and users behind one lock so that reconciliation can
// touch both atomically.
type Storage struct {
	mtx     *sync.RWMutex
	tasks   map[uuid.UUID]*task.Task
	taskIDs []uuid.UUID
	users   map[uuid.UUID]*user.User
	userIDs []uuid.UUID
}

func NewStorage() *Storage {
	return &Storage{
		mtx:     &sync.RWMutex{},
		tasks:   make(map[uuid.UUID]*task.Task),
		taskIDs: []uuid.UUID{},
		users:   make(map[uuid.UUID]*user.User),
		userIDs: []uuid.UUID{},
	}
}

func (s *Storage) Tasks() *TaskStorage {
	return &TaskStorage{s}
}

func (s *Storage) Users() *UserStorage {
	return &UserStorage{s}
}

func (s *Storage) Close() {}
