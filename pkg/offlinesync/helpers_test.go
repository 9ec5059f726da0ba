package offlinesync

import "github.com/bft-labs/offlinesync/internal/app"

func newItem(url string) app.NewItem {
	return app.NewItem{URL: url, Method: "POST", Body: []byte(`{}`)}
}
