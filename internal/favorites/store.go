// Package favorites はセッション単位のお気に入り写真を管理する。
// お気に入りは追加順に保持され、写真IDで一意になる。永続化はしない。
package favorites

import (
	"github.com/hitoshi/photoshelf/internal/model"
	"github.com/hitoshi/photoshelf/internal/observable"
)

// Store はお気に入り写真の順序付き集合。
// 変更のたびに購読者へ新しいスナップショットを同期的に通知する。
// 変更はUI状態を所有する実行コンテキスト（mainloop）上で行うこと。
type Store struct {
	photos *observable.Value[[]model.Photo]
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		photos: observable.NewValue[[]model.Photo](nil),
	}
}

// Add は同じIDの写真が未登録の場合のみ末尾に追加する。
// 追加した場合はtrueを返す。登録済みの場合は何もしない（冪等）。
func (s *Store) Add(photo model.Photo) bool {
	_, added := s.photos.Update(func(current []model.Photo) ([]model.Photo, bool) {
		if indexOf(current, photo.ID) >= 0 {
			return current, false
		}
		next := make([]model.Photo, len(current), len(current)+1)
		copy(next, current)
		return append(next, photo), true
	})
	return added
}

// Remove は同じIDの写真を取り除く。未登録の場合は何もしない。
func (s *Store) Remove(photo model.Photo) bool {
	return s.RemoveByID(photo.ID)
}

// RemoveByID は指定IDの写真を取り除く。取り除いた場合はtrueを返す。
func (s *Store) RemoveByID(id int) bool {
	_, removed := s.photos.Update(func(current []model.Photo) ([]model.Photo, bool) {
		i := indexOf(current, id)
		if i < 0 {
			return current, false
		}
		next := make([]model.Photo, 0, len(current)-1)
		next = append(next, current[:i]...)
		return append(next, current[i+1:]...), true
	})
	return removed
}

// Contains は同じIDの写真が登録されているかを返す。
func (s *Store) Contains(photo model.Photo) bool {
	return s.ContainsID(photo.ID)
}

// ContainsID は指定IDの写真が登録されているかを返す。
func (s *Store) ContainsID(id int) bool {
	return indexOf(s.photos.Get(), id) >= 0
}

// List は登録順のお気に入り一覧のコピーを返す。
func (s *Store) List() []model.Photo {
	current := s.photos.Get()
	out := make([]model.Photo, len(current))
	copy(out, current)
	return out
}

// Len は登録件数を返す。
func (s *Store) Len() int {
	return len(s.photos.Get())
}

// Subscribe は変更通知の購読者を登録し、登録解除用の関数を返す。
// 購読者には変更後の一覧のコピーが渡される。
func (s *Store) Subscribe(fn func([]model.Photo)) (unsubscribe func()) {
	return s.photos.Subscribe(func(photos []model.Photo) {
		snapshot := make([]model.Photo, len(photos))
		copy(snapshot, photos)
		fn(snapshot)
	})
}

// SubscriberCount は登録中の購読者数を返す。
func (s *Store) SubscriberCount() int {
	return s.photos.SubscriberCount()
}

// MarkLiked は写真一覧のLikedをお気に入り登録状態に合わせたコピーを返す。
func (s *Store) MarkLiked(photos []model.Photo) []model.Photo {
	current := s.photos.Get()
	out := make([]model.Photo, len(photos))
	for i, p := range photos {
		p.Liked = indexOf(current, p.ID) >= 0
		out[i] = p
	}
	return out
}

func indexOf(photos []model.Photo, id int) int {
	for i, p := range photos {
		if p.ID == id {
			return i
		}
	}
	return -1
}
