package fetcher

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// containerIDs and containerClasses mark the element that wraps the
// organic results.
var (
	containerIDs     = map[string]bool{"search": true, "rso": true}
	containerClasses = map[string]bool{"srg": true}
)

// HasResultContainer reports whether the HTML carries a result container.
// It streams tokens and stops at the first hit.
func HasResultContainer(body []byte) bool {
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			_, hasAttr := z.TagName()
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "id":
					if containerIDs[string(val)] {
						return true
					}
				case "class":
					for _, c := range strings.Fields(string(val)) {
						if containerClasses[c] {
							return true
						}
					}
				}
			}
		}
	}
}
