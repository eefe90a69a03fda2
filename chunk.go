package gorawrremote

import (
	"net/url"
	"strings"
)

// joinURL joins base and path with exactly one slash between them.
func joinURL(base, path string) string {
	switch {
	case path == "":
		return base
	case base == "":
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// resolve returns ref unchanged when it is absolute and joins it to base
// otherwise.
func resolve(base, ref string) string {
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return joinURL(base, ref)
}

// batchURLs splits ids into as few URLs as possible, each at most maxLen
// long. IDs keep their order. An ID too long to fit even alone still gets a
// URL of its own. Each batch is returned with the IDs it carries.
func batchURLs(endpoint, param string, ids []string, maxLen int) []batch {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	prefix := endpoint + sep + url.QueryEscape(param) + "="

	var (
		out    []batch
		cur    batch
		curLen = len(prefix)
	)
	flush := func() {
		if len(cur.ids) == 0 {
			return
		}
		cur.url = prefix + strings.Join(cur.escaped, ",")
		out = append(out, cur)
		cur = batch{}
		curLen = len(prefix)
	}

	for _, id := range ids {
		esc := url.QueryEscape(id)
		add := len(esc)
		if len(cur.ids) > 0 {
			add++ // comma
		}
		if len(cur.ids) > 0 && maxLen > 0 && curLen+add > maxLen {
			flush()
			add = len(esc)
		}
		cur.ids = append(cur.ids, id)
		cur.escaped = append(cur.escaped, esc)
		curLen += add
	}
	flush()
	return out
}

type batch struct {
	url     string
	ids     []string
	escaped []string
}
