package locator

import (
	"sort"

	"github.com/hazyhaar/navkit/serpnav/host"
)

// Sort orders entries by document structure. Entries under another root
// (a frame document, a detached tree) have no structural relationship to
// the main document: they are sorted among themselves by position on
// screen, then merged into the structural order by geometry. The main
// document's relative order is never changed by the merge.
func Sort(set ResultSet) {
	var main, other ResultSet
	for _, e := range set {
		if e.Pos.Root == "" {
			main = append(main, e)
		} else {
			other = append(other, e)
		}
	}
	sort.SliceStable(main, func(i, j int) bool {
		cmp, _ := host.ComparePos(main[i].Pos, main[j].Pos)
		return cmp < 0
	})
	sort.SliceStable(other, func(i, j int) bool {
		return geometric(other[i], other[j])
	})

	i, j, k := 0, 0, 0
	for i < len(main) && j < len(other) {
		if above(other[j].Rect, main[i].Rect) {
			set[k] = other[j]
			j++
		} else {
			set[k] = main[i]
			i++
		}
		k++
	}
	k += copy(set[k:], main[i:])
	copy(set[k:], other[j:])
}

// geometric is a total order: top, left, root, then tree path.
func geometric(a, b Entry) bool {
	if a.Rect.Top != b.Rect.Top || a.Rect.Left != b.Rect.Left {
		return above(a.Rect, b.Rect)
	}
	if a.Pos.Root != b.Pos.Root {
		return a.Pos.Root < b.Pos.Root
	}
	cmp, _ := host.ComparePos(a.Pos, b.Pos)
	return cmp < 0
}

func above(a, b host.Rect) bool {
	if a.Top != b.Top {
		return a.Top < b.Top
	}
	return a.Left < b.Left
}
