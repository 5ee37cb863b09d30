package widget

// Area is a named layout slot holding an ordered list of widget instance ids.
// Ordering is rendering order; ids within an area are unique.
type Area struct {
	ID        string  `json:"id"`
	WidgetIDs []int64 `json:"widgetIds"`
}

// AreaInfo describes an area for display purposes.
type AreaInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemAreas returns the fixed set of system-defined areas every theme can
// rely on. Callers get a fresh slice; the set itself never changes at runtime.
func SystemAreas() []AreaInfo {
	return []AreaInfo{
		{ID: "blog-sidebar1", Name: "Blog Sidebar1"},
		{ID: "blog-sidebar2", Name: "Blog Sidebar2"},
		{ID: "blog-before-post", Name: "Blog Before Post"},
		{ID: "blog-after-post", Name: "Blog After Post"},
		{ID: "blog-before-post-list", Name: "Blog Before Post List"},
		{ID: "blog-after-post-list", Name: "Blog After Post List"},
		{ID: "footer1", Name: "Footer1"},
		{ID: "footer2", Name: "Footer2"},
		{ID: "footer3", Name: "Footer3"},
	}
}

// ComposedArea is an area resolved into its ordered widget instances, ready
// for rendering.
type ComposedArea struct {
	ID      string           `json:"id"`
	Widgets []ComposedWidget `json:"widgets"`
}

// ComposedWidget pairs a rehydrated widget instance with the display name of
// its type from the installed-widgets catalog.
type ComposedWidget struct {
	Widget Widget `json:"widget"`
	Name   string `json:"name"`
}

// insertAt splices id into ids at index, shifting existing entries right.
// Indexes past the end append; negative indexes prepend.
func insertAt(ids []int64, id int64, index int) []int64 {
	if index < 0 {
		index = 0
	}
	if index > len(ids) {
		index = len(ids)
	}

	out := make([]int64, 0, len(ids)+1)
	out = append(out, ids[:index]...)
	out = append(out, id)
	out = append(out, ids[index:]...)
	return out
}

// removeID filters id out of ids, preserving the order of the remainder.
func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
