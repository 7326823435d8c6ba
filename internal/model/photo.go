// Package model はドメインモデルを定義する。
package model

// Photo は検索APIが返す写真1件を表す。
// 同一性はIDのみで判定し、他のフィールドの差異は問わない。
type Photo struct {
	ID              int         `json:"id"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	URL             string      `json:"url"`
	Photographer    string      `json:"photographer"`
	PhotographerURL string      `json:"photographer_url"`
	PhotographerID  int         `json:"photographer_id"`
	AvgColor        string      `json:"avg_color"`
	Src             PhotoSource `json:"src"`
	Liked           bool        `json:"liked"`
	Alt             string      `json:"alt"`
}

// PhotoSource は解像度別の画像URLを保持する。
type PhotoSource struct {
	Original  string `json:"original"`
	Large2X   string `json:"large2x"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Portrait  string `json:"portrait"`
	Landscape string `json:"landscape"`
	Tiny      string `json:"tiny"`
}

// SameAs は2つの写真が同一の写真かどうかをIDで判定する。
func (p Photo) SameAs(other Photo) bool {
	return p.ID == other.ID
}

// URLs は空でない解像度別URLを大きい順に返す。
func (s PhotoSource) URLs() []string {
	all := []string{
		s.Original, s.Large2X, s.Large, s.Medium,
		s.Small, s.Portrait, s.Landscape, s.Tiny,
	}
	urls := make([]string, 0, len(all))
	for _, u := range all {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// SearchResponse は検索APIのレスポンスボディ。
// photos以外のページング情報はAPIが返した場合のみ埋まる。
type SearchResponse struct {
	TotalResults int     `json:"total_results"`
	Page         int     `json:"page"`
	PerPage      int     `json:"per_page"`
	Photos       []Photo `json:"photos"`
	NextPage     string  `json:"next_page,omitempty"`
}
