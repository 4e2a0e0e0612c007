package model

// Styles is the catalog of generation styles. The first entry is the default.
var Styles = []string{
	"no style",
	"anime",
	"painted anime",
	"casual photo",
	"cinematic",
	"digital painting",
	"concept art",
	"3d disney character",
	"2d disney character",
	"disney sketch",
	"fantasy painting",
	"watercolor",
	"oil painting",
	"pixel art",
	"cyberpunk",
	"professional photo",
	"cartoon",
	"comic book",
}

// DefaultStyle returns the catalog's default style
func DefaultStyle() string {
	return Styles[0]
}

// ResolveStyle returns style if it is in the catalog, otherwise the default
func ResolveStyle(style string) string {
	for _, s := range Styles {
		if s == style {
			return s
		}
	}
	return DefaultStyle()
}
