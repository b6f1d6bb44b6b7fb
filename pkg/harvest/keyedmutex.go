package harvest

import (
	"context"
	"sync"
)

// KeyedMutex is an in-process Locker holding one lock per key. Locks for
// unused keys are released from the map once nobody holds or waits on them.
type KeyedMutex struct {
	mutex sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	held    chan struct{}
	waiters int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: map[string]*keyedLock{},
	}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mutex.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyedLock{}
	}
	lock, exists := k.locks[key]
	if !exists {
		lock = &keyedLock{held: make(chan struct{}, 1)}
		k.locks[key] = lock
	}
	lock.waiters++
	k.mutex.Unlock()

	select {
	case lock.held <- struct{}{}:
	case <-ctx.Done():
		k.release(key, lock)
		return nil, ctx.Err()
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			<-lock.held
			k.release(key, lock)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, lock *keyedLock) {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	lock.waiters--
	if lock.waiters == 0 {
		delete(k.locks, key)
	}
}

// Len is the number of keys currently held or waited on
func (k *KeyedMutex) Len() int {
	k.mutex.Lock()
	defer k.mutex.Unlock()

	return len(k.locks)
}
