package gateway

import (
	"net/http"
	"regexp"
)

// kind is the fetch-handling class of one incoming request.
type kind int

const (
	kindPassthrough kind = iota
	kindImage
	kindAsset
	kindNavigation
)

func (k kind) String() string {
	switch k {
	case kindImage:
		return "image"
	case kindAsset:
		return "asset"
	case kindNavigation:
		return "navigation"
	default:
		return "passthrough"
	}
}

var (
	imagePathRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|webp|svg|ico)$`)
	assetPathRe = regexp.MustCompile(`(?i)\.(js|css)$`)
)

// classify decides how a request is served. Only GETs are interceptable;
// everything else passes straight through to the origin. Any intercepted GET
// that is neither an image nor a script/style takes the navigation strategy,
// so API reads share the document cache and stay answerable offline.
func classify(r *http.Request) kind {
	if r.Method != http.MethodGet {
		return kindPassthrough
	}

	path := r.URL.Path
	switch {
	case imagePathRe.MatchString(path):
		return kindImage
	case assetPathRe.MatchString(path):
		return kindAsset
	default:
		return kindNavigation
	}
}
