// Package dedup computes which fetched posts have not been seen before.
package dedup

// Diff returns the posts in fetched that are not in seen, in fetched order, and
// seen with those posts appended. Neither input is modified.
//
// A post listed more than once in fetched is reported once, so updated never
// holds duplicates.
func Diff(fetched, seen []string) (fresh, updated []string) {
	known := make(map[string]struct{}, len(seen)+len(fetched))
	for _, id := range seen {
		known[id] = struct{}{}
	}

	for _, id := range fetched {
		if _, ok := known[id]; ok {
			continue
		}
		known[id] = struct{}{}
		fresh = append(fresh, id)
	}

	updated = make([]string, 0, len(seen)+len(fresh))
	updated = append(updated, seen...)
	updated = append(updated, fresh...)
	return fresh, updated
}

// Trim drops the oldest entries of seen until at most limit remain. Entries in
// keep (posts still listed on the page) are never dropped. A limit of zero or
// less disables trimming.
func Trim(seen []string, limit int, keep ...string) []string {
	if limit <= 0 || len(seen) <= limit {
		return seen
	}

	pinned := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		pinned[id] = struct{}{}
	}

	drop := len(seen) - limit
	out := make([]string, 0, limit)
	for _, id := range seen {
		if drop > 0 {
			if _, ok := pinned[id]; !ok {
				drop--
				continue
			}
		}
		out = append(out, id)
	}
	return out
}
