// internal/contracts/filter.go
package contracts

// ForRole narrows the full contract set to what a role may see. A resource
// not in the role's list disappears entirely; operations on the survivors
// are intersected with the role's operation grant. Joins pointing at
// resources the role cannot see are stripped, so a filtered view can never
// reference data outside the grant.
//
// The returned contracts are deep copies; mutating them never touches the
// registry.
func ForRole(all map[string]*ResourceContract, resources, operations []string) map[string]*ResourceContract {
	wildcard := false
	allowed := map[string]bool{}
	for _, r := range resources {
		if r == "*" {
			wildcard = true
			continue
		}
		allowed[r] = true
	}

	opWildcard := false
	grantedOps := map[Operation]bool{}
	for _, o := range operations {
		if o == "*" {
			opWildcard = true
			continue
		}
		grantedOps[Operation(o)] = true
	}

	out := map[string]*ResourceContract{}
	for name, c := range all {
		if !wildcard && !allowed[name] {
			continue
		}
		cp := c.clone()
		if !opWildcard {
			ops := cp.OpsAllowed[:0]
			for _, op := range cp.OpsAllowed {
				if grantedOps[op] {
					ops = append(ops, op)
				}
			}
			cp.OpsAllowed = ops
		}
		if len(cp.OpsAllowed) == 0 {
			continue
		}
		joins := cp.JoinsAllowed[:0]
		for _, jd := range cp.JoinsAllowed {
			if wildcard || allowed[jd.TargetResource] {
				joins = append(joins, jd)
			}
		}
		cp.JoinsAllowed = joins
		out[name] = cp
	}
	return out
}
