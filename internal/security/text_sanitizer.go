package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// TextSanitizer は外部APIから受け取った文字列（写真の説明文や撮影者名）を
// プレーンテキストに正規化するインターフェース。
type TextSanitizer interface {
	// Sanitize はHTMLタグを取り除き、エンティティを復元したテキストを返す。
	// 連続する空白は1つにまとめる。空文字列の入力には空文字列を返す。
	Sanitize(raw string) string
}

// textSanitizer はbluemondayのStrictPolicyでタグを除去する実装。
// Policyはスレッドセーフに利用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグ除去後にbluemondayがエスケープしたエンティティを元に戻す。
// 結果はJSONとして返すため、HTMLとしての再エスケープは表示側で行う。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	text := html.UnescapeString(stripped)
	return strings.Join(strings.Fields(text), " ")
}
