package upload

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tbxark/stepform/types"
)

// PreviewAllocator hands out local preview handles for staged files.
type PreviewAllocator interface {
	Acquire(file types.File) (string, error)
	Release(handle string)
}

// HandleAllocator issues opaque "blob:" handles and tracks which are live.
type HandleAllocator struct {
	mu   sync.Mutex
	live map[string]types.File
}

func NewHandleAllocator() *HandleAllocator {
	return &HandleAllocator{live: make(map[string]types.File)}
}

func (a *HandleAllocator) Acquire(file types.File) (string, error) {
	handle := "blob:" + uuid.NewString()
	a.mu.Lock()
	a.live[handle] = file
	a.mu.Unlock()
	return handle, nil
}

func (a *HandleAllocator) Release(handle string) {
	a.mu.Lock()
	delete(a.live, handle)
	a.mu.Unlock()
}

// Open returns the file behind a live handle.
func (a *HandleAllocator) Open(handle string) (types.File, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.live[handle]
	return f, ok
}

func (a *HandleAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
