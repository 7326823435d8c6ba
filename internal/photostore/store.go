// Package photostore は検索結果とエラーメッセージを保持する画面状態を提供する。
package photostore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/photoshelf/internal/mainloop"
	"github.com/hitoshi/photoshelf/internal/model"
	"github.com/hitoshi/photoshelf/internal/observable"
	"github.com/hitoshi/photoshelf/internal/pexels"
)

// State は検索状態のスナップショット。
type State struct {
	Query        string        `json:"query"`
	Photos       []model.Photo `json:"photos"`
	ErrorMessage string        `json:"error_message"`
}

// Store は直近の検索結果とエラーメッセージを観測可能な状態として保持する。
// 状態の変更はexecutor上でのみ行う。
type Store struct {
	searcher pexels.Searcher
	exec     mainloop.Executor

	query        *observable.Value[string]
	photos       *observable.Value[[]model.Photo]
	errorMessage *observable.Value[string]
}

// NewStore はStoreを生成する。execがnilの場合は呼び出し元で状態を更新する。
func NewStore(searcher pexels.Searcher, exec mainloop.Executor) *Store {
	if exec == nil {
		exec = mainloop.Inline{}
	}
	return &Store{
		searcher:     searcher,
		exec:         exec,
		query:        observable.NewValue(""),
		photos:       observable.NewValue([]model.Photo{}),
		errorMessage: observable.NewValue(""),
	}
}

// SearchPhotos は検索を実行し、結果をexecutor上で状態に反映する。
// 成功時は写真一覧を置き換えてエラーメッセージを消す。
// 失敗時はエラーメッセージのみを設定し、写真一覧は変更しない。
// 検索は呼び出し元のgoroutineで行うため、executorのタスク内から呼んではならない。
func (s *Store) SearchPhotos(ctx context.Context, query string) (State, error) {
	photos, searchErr := s.searcher.Search(ctx, query)

	var state State
	err := s.exec.Do(context.WithoutCancel(ctx), func() {
		s.query.Set(query)
		if searchErr != nil {
			s.errorMessage.Set(errorMessage(searchErr))
		} else {
			s.photos.Set(photos)
			s.errorMessage.Set("")
		}
		state = s.snapshot()
	})
	if err != nil {
		return State{}, err
	}
	return state, nil
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	return s.snapshot()
}

// Photos は現在の写真一覧を返す。
func (s *Store) Photos() []model.Photo {
	return copyPhotos(s.photos.Get())
}

// ErrorMessage は現在のエラーメッセージを返す。エラーがない場合は空文字列。
func (s *Store) ErrorMessage() string {
	return s.errorMessage.Get()
}

// SubscribePhotos は写真一覧の変更を購読する。
func (s *Store) SubscribePhotos(fn func([]model.Photo)) (unsubscribe func()) {
	return s.photos.Subscribe(func(photos []model.Photo) {
		fn(copyPhotos(photos))
	})
}

// SubscribeErrorMessage はエラーメッセージの変更を購読する。
func (s *Store) SubscribeErrorMessage(fn func(string)) (unsubscribe func()) {
	return s.errorMessage.Subscribe(fn)
}

func (s *Store) snapshot() State {
	return State{
		Query:        s.query.Get(),
		Photos:       copyPhotos(s.photos.Get()),
		ErrorMessage: s.errorMessage.Get(),
	}
}

// errorMessage は検索エラーを表示用メッセージに変換する。
func errorMessage(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	slog.Warn("検索クライアントが未分類のエラーを返しました", slog.String("error", err.Error()))
	return "Error: " + err.Error()
}

func copyPhotos(photos []model.Photo) []model.Photo {
	out := make([]model.Photo, len(photos))
	copy(out, photos)
	return out
}
