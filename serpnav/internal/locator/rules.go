package locator

// Category classifies an entry. It only feeds the acceptance filter and
// the container heuristics, never the ordering.
type Category string

const (
	Standard Category = "standard"
	Video    Category = "video"
	Image    Category = "image"
	News     Category = "news"
)

// Rule is one structural pattern targeting a layout variant. Rules
// overlap on purpose; duplicates are absorbed by identity dedup.
type Rule struct {
	Name     string
	Selector string
}

// DefaultRules is the ordered rule list for the known result layouts.
var DefaultRules = []Rule{
	// Primary titled results.
	{"title-h3", ".g h3 a"},
	{"title-wrapper", ".yuRUbf a"},
	{"title-inner", ".tF2Cxc h3 a"},
	{"title-legacy", ".rc h3 a"},

	// Image blocks.
	{"image-result", ".isv-r a"},
	{"image-gallery", ".rg_l"},
	{"image-item", ".islir"},
	{"image-indexed", "[data-ved] a[data-ri]"},
	{"image-link", ".w2tnNd"},
	{"image-container", ".VFACy a"},
	{"image-thumb", ".Q4LuWd a"},

	// Media/video blocks.
	{"video-block", ".g-blk h3 a"},
	{"video-result", ".video-result h3 a"},
	{"video-wrapper", `.g .yuRUbf a[href*="youtube.com"]`},
	{"video-title", `.g h3 a[href*="youtube.com"]`},
	{"video-heading-link", `.g a[href*="youtube.com"]:has(h3)`},
	{"video-tracked", `[data-ved] a[href*="youtube.com"]`},
	{"video-carousel", `.video-carousel a[href*="youtube.com"]`},
	{"video-thumb", `.g .T47uwc a[href*="youtube.com"]`},
	{"video-container", `.g .qPKGkd a[href*="youtube.com"]`},

	// News blocks.
	{"news-carousel", ".SoaBEf h3 a"},
	{"news-article", ".WlydOe h3 a"},
	{"news-link", ".ftSUBd a"},
	{"news-card", ".Y3v8qd a"},
	{"news-result", ".xTFaxe a"},
	{"news-title", ".tHmfQe a"},
	{"news-container", ".mCBkyc h3 a"},
	{"news-story", ".dbsr a"},

	// Knowledge and rich blocks.
	{"knowledge-panel", ".kp-blk h3 a"},
	{"rich-module", ".mod h3 a"},

	// Generic structural-role fallbacks.
	{"tracked-heading", "[data-ved] h3 a"},
	{"nested-heading-link", ".g > div > div > div > a[href]:has(h3)"},
}

// ResultContainer matches the anchors a results page renders into. Its
// absence means the page is not ready yet.
const ResultContainer = "#search, #rso, .srg, [data-async-context]"

// Role selectors used by the acceptance filter.
const (
	cardRoles  = ".MjjYud, .g, .yuRUbf, .tF2Cxc, .g-blk, .SoaBEf, .WlydOe, .kp-blk, .mod, .T47uwc, .qPKGkd, .isv-r, .VFACy, .Q4LuWd, .ftSUBd, .Y3v8qd, .xTFaxe, .mCBkyc, .dbsr"
	imageRoles = ".isv-r, .VFACy, .Q4LuWd"
	newsRoles  = ".SoaBEf, .WlydOe, .ftSUBd, .Y3v8qd, .xTFaxe, .mCBkyc, .dbsr"
	videoHost  = "youtube.com"
)

// blockedAddresses are internal destinations of the search host that are
// never results.
var blockedAddresses = []string{
	"google.com/search",
	"accounts.google.com",
	"support.google.com",
	"policies.google.com",
	"maps.google.com/maps?",
}

// diagnosticAnchors are counted when a scan comes back empty.
var diagnosticAnchors = []string{".g", ".yuRUbf", "h3 a", "[data-ved]"}
