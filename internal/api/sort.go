package api

import (
	"sort"
	"time"

	"hcext/internal/util"
)

// ComparePosition orders objects by ascending numeric position. Objects
// without a position sort last.
func ComparePosition(a, b Object) int {
	pa, oka := util.ToFloat(a["position"])
	pb, okb := util.ToFloat(b["position"])
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return 1
	case !okb:
		return -1
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	}
	return 0
}

// CompareName orders objects by title, or name when there is no title.
func CompareName(a, b Object) int {
	na, nb := displayName(a), displayName(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	return 0
}

func displayName(o Object) string {
	if t, ok := o["title"].(string); ok && t != "" {
		return t
	}
	n, _ := o["name"].(string)
	return n
}

// CompareDate orders objects by ascending created_at.
func CompareDate(a, b Object) int {
	ta, tb := createdAt(a), createdAt(b)
	switch {
	case ta.Before(tb):
		return -1
	case ta.After(tb):
		return 1
	}
	return 0
}

func createdAt(o Object) time.Time {
	s, _ := o["created_at"].(string)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ComparePromoted puts promoted objects first. Objects lacking the promoted
// flag compare equal to everything.
func ComparePromoted(a, b Object) int {
	pa, oka := a["promoted"].(bool)
	pb, okb := b["promoted"].(bool)
	if !oka || !okb || pa == pb {
		return 0
	}
	if pa {
		return -1
	}
	return 1
}

// Comparators names the comparators widgets may refer to in options.
var Comparators = map[string]func(a, b Object) int{
	"sortByPosition": ComparePosition,
	"sortByName":     CompareName,
	"sortByDate":     CompareDate,
	"sortByPromoted": ComparePromoted,
}

// SortBy stably sorts objs with cmp.
func SortBy(objs []Object, cmp func(a, b Object) int) {
	sort.SliceStable(objs, func(i, j int) bool { return cmp(objs[i], objs[j]) < 0 })
}

func SortByPosition(objs []Object) { SortBy(objs, ComparePosition) }
func SortByName(objs []Object)     { SortBy(objs, CompareName) }
func SortByDate(objs []Object)     { SortBy(objs, CompareDate) }
func SortByPromoted(objs []Object) { SortBy(objs, ComparePromoted) }
