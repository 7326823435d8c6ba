// Package mainloop はUI状態を所有する単一の実行コンテキストを提供する。
// 状態の変更と購読者への通知はすべてこのループ上で行い、
// バックグラウンド処理は計算した値をキュー経由で受け渡す。
package mainloop

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrStopped はループ停止後に処理を投入した場合のエラー。
var ErrStopped = errors.New("mainloop: stopped")

// defaultQueueSize はタスクキューのデフォルト長。
const defaultQueueSize = 256

// Executor は指定した処理を単一の実行コンテキスト上で実行するインターフェース。
type Executor interface {
	// Post は処理をキューに積み、完了を待たずに戻る。
	// ループが停止している場合はfalseを返す。
	Post(fn func()) bool
	// Do は処理をループ上で実行し、完了まで待つ。
	Do(ctx context.Context, fn func()) error
}

// Loop はキューに積まれた処理を1つのgoroutineで順番に実行する。
type Loop struct {
	tasks   chan func()
	stopped chan struct{}
	done    chan struct{}

	// closedはmuの書き込みロック下でのみtrueにする。
	// trueになった後はキューに処理が追加されない。
	mu     sync.RWMutex
	closed bool

	stopOnce sync.Once
	runOnce  sync.Once
}

// New は新しいLoopを生成する。queueSizeが0以下の場合はデフォルト長を使う。
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Loop{
		tasks:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run はループを実行する。ctxがキャンセルされるかStopが呼ばれるまでブロックする。
// 2回目以降の呼び出しは何もしない。
func (l *Loop) Run(ctx context.Context) {
	l.runOnce.Do(func() {
		defer close(l.done)
		for {
			select {
			case <-ctx.Done():
				l.Stop()
				l.drain()
				return
			case <-l.stopped:
				l.drain()
				return
			case fn := <-l.tasks:
				l.exec(fn)
			}
		}
	})
}

// Start はループをバックグラウンドgoroutineで起動する。
func (l *Loop) Start(ctx context.Context) {
	go l.Run(ctx)
}

// Stop はループを停止する。停止前に受け付けた処理はループ終了までにすべて実行される。
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopped)
	})
	l.close()
}

// close は以降の処理の受け付けを締め切る。
// キューへ書き込み中のPost/Doが抜けるまで待つ。
func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// drain は受け付けを締め切った後、キューに残った処理を実行する。
func (l *Loop) drain() {
	l.close()
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		default:
			return
		}
	}
}

// Done はループ終了時にcloseされるチャネルを返す。
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post は処理をキューに積む。trueを返した処理はループ終了までに必ず実行される。
func (l *Loop) Post(fn func()) bool {
	return l.enqueue(context.Background(), fn) == nil
}

// enqueue は受け付けが締め切られていなければ処理をキューに積む。
func (l *Loop) enqueue(ctx context.Context, fn func()) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrStopped
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do は処理をループ上で実行し、完了まで待つ。
// ループ上の処理から呼んではならない（自分自身の完了を待ってデッドロックする）。
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	if err := l.enqueue(ctx, task); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// ループは終了前にキューを空にするため、通常はここで完了している
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exec は1件の処理を実行する。panicはログに記録してループを継続する。
func (l *Loop) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("mainloop task panicked",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}

// Inline はキューを介さず呼び出し元で即座に実行するExecutor。
// ループを持たない利用側やテストで使う。
type Inline struct{}

// Post は処理をその場で実行する。
func (Inline) Post(fn func()) bool {
	fn()
	return true
}

// Do は処理をその場で実行する。
func (Inline) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fn()
	return nil
}

// compile-time interface check
var (
	_ Executor = (*Loop)(nil)
	_ Executor = Inline{}
)
