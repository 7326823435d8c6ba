// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/photoshelf/internal/session"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionProvider はセッションの取得・生成に必要なインターフェース。
// session.Managerの部分集合として定義する。
type SessionProvider interface {
	GetOrCreate(id string) (*session.Session, bool)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieが無い、または期限切れの場合は匿名セッションを新規に発行してCookieを設定する。
func NewSessionMiddleware(provider SessionProvider, maxAge int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cookie, err := r.Cookie(sessionCookieName); err == nil {
				id = cookie.Value
			}

			s, created := provider.GetOrCreate(id)
			if created {
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookieName,
					Value:    s.ID,
					Path:     "/",
					MaxAge:   maxAge,
					HttpOnly: true,
					Secure:   r.TLS != nil,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), s)))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*session.Session, error) {
	s, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok || s == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return s, nil
}

// SessionIDFromContext はリクエストコンテキストのセッションIDを返す。
// セッションが無い場合は空文字列を返す。
func SessionIDFromContext(ctx context.Context) string {
	s, err := SessionFromContext(ctx)
	if err != nil {
		return ""
	}
	return s.ID
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}
