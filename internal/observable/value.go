// Package observable は購読者へ同期的に通知する状態コンテナを提供する。
package observable

import "sync"

// Value は値を保持し、変更のたびに登録済みの購読者へ同期的に通知する。
// 通知はSet/Updateを呼んだgoroutine上で、Set/Updateが戻る前に行われる。
type Value[T any] struct {
	mu          sync.RWMutex
	value       T
	nextID      int
	subscribers map[int]func(T)
	order       []int
}

// NewValue は初期値を持つValueを生成する。
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		value:       initial,
		subscribers: make(map[int]func(T)),
	}
}

// Get は現在の値を返す。
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Set は値を置き換え、購読者に通知する。
func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	v.value = value
	subs := v.snapshotSubscribers()
	v.mu.Unlock()

	notify(subs, value)
}

// Update は現在の値をfnで変換する。fnがfalseを返した場合は値を変えず通知もしない。
// 変更した場合は新しい値とtrueを返す。
func (v *Value[T]) Update(fn func(current T) (T, bool)) (T, bool) {
	v.mu.Lock()
	next, changed := fn(v.value)
	if !changed {
		current := v.value
		v.mu.Unlock()
		return current, false
	}
	v.value = next
	subs := v.snapshotSubscribers()
	v.mu.Unlock()

	notify(subs, next)
	return next, true
}

// Subscribe は購読者を登録し、登録解除用の関数を返す。
// 登録時点では通知しない。
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.subscribers[id] = fn
	v.order = append(v.order, id)
	v.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subscribers, id)
			for i, sid := range v.order {
				if sid == id {
					v.order = append(v.order[:i], v.order[i+1:]...)
					break
				}
			}
		})
	}
}

// SubscriberCount は登録中の購読者数を返す。
func (v *Value[T]) SubscriberCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.subscribers)
}

// snapshotSubscribers は登録順の購読者一覧をコピーして返す。ロック保持中に呼ぶ。
func (v *Value[T]) snapshotSubscribers() []func(T) {
	subs := make([]func(T), 0, len(v.order))
	for _, id := range v.order {
		subs = append(subs, v.subscribers[id])
	}
	return subs
}

// notify はロック外で購読者を順に呼び出す。購読者内からの Get や Subscribe を許すため。
func notify[T any](subs []func(T), value T) {
	for _, fn := range subs {
		fn(value)
	}
}
