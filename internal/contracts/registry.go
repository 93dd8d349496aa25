// internal/contracts/registry.go
package contracts

import "sort"

// All returns the full contract set, keyed by resource name. The map and
// its contracts are freshly built on every call, so callers may filter
// them in place.
func All() map[string]*ResourceContract {
	out := map[string]*ResourceContract{}
	for _, c := range []*ResourceContract{
		casesContract(),
		clientCommunicationsContract(),
		documentsContract(),
		documentAnalysisContract(),
	} {
		out[c.Resource] = c
	}
	return out
}

// Resources lists every known resource name, sorted.
func Resources() []string {
	all := All()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
