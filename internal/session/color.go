package session

import "hash/fnv"

// palette holds visually distinct colors for peer indicators. The mapping
// from client identity to color is a stable hash, so a client keeps its
// color across reconnects and actor re-instantiation.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#800000", "#aaffc3",
}

// ColorFor maps a client identity to a palette color deterministically.
func ColorFor(identity string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identity))
	return palette[h.Sum32()%uint32(len(palette))]
}
