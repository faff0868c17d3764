package analysis

import "slices"

// ResolveDead computes the set difference all − (union of used sets) and
// returns it sorted lexicographically, so repeated runs over unchanged input
// produce byte-identical reports. Matching is exact name equality; entries in
// used that are not in all (unresolved external names) are simply ignored.
func ResolveDead(all map[string]struct{}, used ...map[string]struct{}) []string {
	dead := make([]string, 0, len(all))
	for name := range all {
		if !inAny(name, used) {
			dead = append(dead, name)
		}
	}
	slices.Sort(dead)
	return dead
}

func inAny(name string, sets []map[string]struct{}) bool {
	for _, s := range sets {
		if _, ok := s[name]; ok {
			return true
		}
	}
	return false
}
