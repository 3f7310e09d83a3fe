// Package keylock сериализует работу по ключу внутри одного процесса.
// Записи о ключах удаляются, как только последний владелец освобождает блокировку.
package keylock

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyLock — набор мьютексов, индексированных строковым ключом.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock захватывает блокировку по ключу. Возвращает функцию освобождения.
// При отмене контекста во время ожидания возвращает ctx.Err().
func (k *KeyLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	en, ok := k.locks[key]
	if !ok {
		en = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = en
	}
	en.refs++
	k.mu.Unlock()

	select {
	case en.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, en)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-en.ch
			k.release(key, en)
		})
	}, nil
}

func (k *KeyLock) release(key string, en *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	en.refs--
	if en.refs == 0 {
		delete(k.locks, key)
	}
}

// Len возвращает количество ключей, по которым есть владельцы или ожидающие.
func (k *KeyLock) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
