// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URLGuard は外部の画像URLへアクセスする前の検証と、
// 安全なHTTPクライアントの生成を行うインターフェース。
// 画像URLは検索APIのレスポンスに含まれる任意のURLであるため、
// サーバー側で取得する際にSSRFの踏み台にならないよう検証する。
type URLGuard interface {
	// NewClient は検証済みのHTTPクライアントを生成する。
	NewClient(timeout time.Duration) *http.Client

	// ValidateURL はURLの安全性をリクエスト前に静的に検証する。
	ValidateURL(rawURL string) error
}

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はブロック対象のネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル（クラウドメタデータIPを含む）
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// SSRFGuard はプライベートネットワークへのアクセスを拒否するURLGuard。
type SSRFGuard struct{}

// NewSSRFGuard はSSRFGuardを生成する。
func NewSSRFGuard() *SSRFGuard {
	return &SSRFGuard{}
}

// NewClient はsafeurlによるSSRF防止付きのHTTPクライアントを生成する。
// DNS解決後のIPアドレスもDialerのControlフックで検証される。
func (g *SSRFGuard) NewClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム・ホスト・IPアドレスを検証する。
// DNS再バインディングはNewClientのDialer側で防ぐ。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// PermissiveGuard はスキームとホストの形式のみを検証するURLGuard。
// ローカル開発やテスト用のイメージサーバーに接続する場合に使う。
type PermissiveGuard struct{}

// NewPermissiveGuard はPermissiveGuardを生成する。
func NewPermissiveGuard() *PermissiveGuard {
	return &PermissiveGuard{}
}

// NewClient は標準のHTTPクライアントを生成する。
func (g *PermissiveGuard) NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// ValidateURL はURLがhttp(s)として解釈できるかのみを検証する。
func (g *PermissiveGuard) ValidateURL(rawURL string) error {
	_, err := parseHTTPURL(rawURL)
	return err
}

// parseHTTPURL はURLをパースし、http/httpsスキームと空でないホストを要求する。
func parseHTTPURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty URL")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("disallowed scheme: %q (allowed: %v)", u.Scheme, allowedSchemes)
	}

	if u.Hostname() == "" {
		return nil, fmt.Errorf("empty host in URL: %s", rawURL)
	}
	return u, nil
}

// isBlockedIP はIPアドレスがブロック対象の範囲に含まれるかを返す。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// compile-time interface check
var (
	_ URLGuard = (*SSRFGuard)(nil)
	_ URLGuard = (*PermissiveGuard)(nil)
)
