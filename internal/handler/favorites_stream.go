package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/photoshelf/internal/model"
)

const (
	// streamBufferSize は未送信スナップショットの最大数。超えた場合は古いものから捨てる。
	streamBufferSize = 16
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
)

// favoritesSnapshot はWebSocketで送るお気に入り一覧。
type favoritesSnapshot struct {
	Photos []model.Photo `json:"photos"`
}

// newUpgrader は許可オリジンと同一ホストからの接続のみを受け付けるUpgraderを返す。
func newUpgrader(allowedOrigin string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == allowedOrigin {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// Stream はお気に入りの変更をWebSocketで配信する。
// 接続時に現在の一覧を1回送り、以降は変更のたびに変更後の一覧を送る。
// GET /api/favorites/stream
func (h *FavoritesHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s, ok := requireSession(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		slog.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	updates := make(chan []model.Photo, streamBufferSize)
	push := func(photos []model.Photo) {
		select {
		case updates <- photos:
			return
		default:
		}
		// 受信側が遅れている場合は最も古いスナップショットを捨てる
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- photos:
		default:
		}
	}

	// 初回スナップショットと購読登録を同じタスクで行い、間の変更を取りこぼさない
	var unsubscribe func()
	err = h.exec.Do(context.WithoutCancel(r.Context()), func() {
		push(s.Favorites.List())
		unsubscribe = s.Favorites.Subscribe(push)
	})
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "unavailable"),
			time.Now().Add(streamWriteWait))
		return
	}
	defer unsubscribe()

	slog.Debug("favorites stream opened", slog.String("session_id", s.ID))

	closed := make(chan struct{})
	go readUntilClose(conn, closed)

	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case photos := <-updates:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(favoritesSnapshot{Photos: markAllLiked(photos)}); err != nil {
				slog.Debug("favorites stream write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-closed:
			slog.Debug("favorites stream closed", slog.String("session_id", s.ID))
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readUntilClose はクライアントからのメッセージを読み捨て、切断されたらclosedを閉じる。
// Pong受信のたびに読み込み期限を延長する。
func readUntilClose(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
