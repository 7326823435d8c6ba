package mainloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoop_Post_RunsTasksInOrder(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if !l.Post(func() { got = append(got, i) }) {
			t.Fatalf("Post(%d) returned false", i)
		}
	}

	// Do は先行するPostの完了後に実行される
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do がエラーを返した: %v", err)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("実行順序 = %v, want [0 1 2 3 4]", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("実行件数 = %d, want 5", len(got))
	}
}

func TestLoop_Do_RunsOnSingleGoroutine(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	// 同期なしのカウンタでも、ループ上でのみ更新すれば競合しない
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Do(ctx, func() { counter++ }); err != nil {
				t.Errorf("Do がエラーを返した: %v", err)
			}
		}()
	}
	wg.Wait()

	var final int
	if err := l.Do(ctx, func() { final = counter }); err != nil {
		t.Fatalf("Do がエラーを返した: %v", err)
	}
	if final != 50 {
		t.Errorf("counter = %d, want 50", final)
	}
}

func TestLoop_Stop_RejectsNewWork(t *testing.T) {
	l := New(0)
	l.Start(context.Background())
	l.Stop()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("ループが停止しなかった")
	}

	if l.Post(func() {}) {
		t.Error("停止後の Post は false を返すべき")
	}
	if err := l.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Errorf("停止後の Do のエラー = %v, want ErrStopped", err)
	}
}

func TestLoop_Stop_RunsEveryAcceptedTask(t *testing.T) {
	for round := 0; round < 20; round++ {
		l := New(4)
		l.Start(context.Background())

		var accepted, executed atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					if l.Post(func() { executed.Add(1) }) {
						accepted.Add(1)
					}
				}
			}()
		}

		time.Sleep(time.Millisecond)
		l.Stop()
		wg.Wait()

		select {
		case <-l.Done():
		case <-time.After(time.Second):
			t.Fatal("ループが停止しなかった")
		}
		if accepted.Load() != executed.Load() {
			t.Fatalf("round %d: accepted = %d, executed = %d", round, accepted.Load(), executed.Load())
		}
	}
}

func TestLoop_Stop_BeforeStartDrainsQueue(t *testing.T) {
	l := New(0)
	ran := false
	if !l.Post(func() { ran = true }) {
		t.Fatal("Post returned false before Stop")
	}
	l.Stop()
	l.Run(context.Background())

	if !ran {
		t.Error("受け付け済みの処理が実行されなかった")
	}
	if l.Post(func() {}) {
		t.Error("停止後の Post は false を返すべき")
	}
}

func TestLoop_ContextCancel_StopsLoop(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	l.Start(ctx)
	cancel()

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("コンテキストのキャンセルでループが停止しなかった")
	}
}

func TestLoop_PanicInTask_KeepsRunning(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	l.Post(func() { panic("boom") })

	ran := false
	if err := l.Do(ctx, func() { ran = true }); err != nil {
		t.Fatalf("Do がエラーを返した: %v", err)
	}
	if !ran {
		t.Error("panic後の処理が実行されなかった")
	}
}

func TestInline_RunsImmediately(t *testing.T) {
	var e Executor = Inline{}
	ran := 0
	e.Post(func() { ran++ })
	if err := e.Do(context.Background(), func() { ran++ }); err != nil {
		t.Fatalf("Do がエラーを返した: %v", err)
	}
	if ran != 2 {
		t.Errorf("ran = %d, want 2", ran)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Do(ctx, func() { ran++ }); err == nil {
		t.Error("キャンセル済みコンテキストでは Do はエラーを返すべき")
	}
}
