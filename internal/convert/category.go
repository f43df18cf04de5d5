package convert

// CategoryUnknown is returned by Category for tags outside the table.
const CategoryUnknown = "unknown"

// categories maps v2 start/end tags to the v3 edata.type category.
// Read-only after package initialization.
var categories = map[string]string{
	"OE_START":         "player",
	"GE_START":         "app",
	"GE_GENIE_START":   "app",
	"GE_SESSION_START": "session",
	"CP_SESSION_START": "session",
	"CE_START":         "editor",
	"GE_SESSION_END":   "session",
	"CP_SESSION_END":   "session",
	"OE_END":           "player",
	"GE_GENIE_END":     "app",
	"GE_END":           "app",
	"CE_END":           "editor",
}

// Category returns the semantic category of a v2 event tag, or
// CategoryUnknown.
func Category(eid string) string {
	if c, ok := categories[eid]; ok {
		return c
	}
	return CategoryUnknown
}
