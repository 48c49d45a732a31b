// internal/engine/batch/grouping.go
package batch

import (
	"net/url"
	"strings"
)

// GroupByHost groups URL indexes by lowercase host, keeping input order
// within each group. Unparseable URLs share the "default" group.
func GroupByHost(urls []string) (map[string][]int, []string) {
	groups := make(map[string][]int)
	var hosts []string

	for i, raw := range urls {
		host := "default"
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			host = strings.ToLower(u.Host)
		}
		if _, seen := groups[host]; !seen {
			hosts = append(hosts, host)
		}
		groups[host] = append(groups[host], i)
	}

	return groups, hosts
}

// Interleave returns URL indexes ordered round-robin across hosts, hosts in
// order of first appearance
func Interleave(urls []string) []int {
	groups, hosts := GroupByHost(urls)
	order := make([]int, 0, len(urls))

	for round := 0; len(order) < len(urls); round++ {
		for _, h := range hosts {
			if round < len(groups[h]) {
				order = append(order, groups[h][round])
			}
		}
	}
	return order
}
