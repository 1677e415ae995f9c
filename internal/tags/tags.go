// Package tags implements the capability-matching rule (spec C3): a job is
// eligible for a node iff the job requires no tags at all, or every tag it
// requires is among the tags the node provides.
package tags

// Eligible reports whether a job requiring jobTags can run on a node
// providing nodeTags.
//
//	J = ∅                      -> eligible (untagged jobs run anywhere)
//	J ⊆ T  (so J ∩ T = J ≠ ∅)   -> eligible
//	otherwise                   -> not eligible
func Eligible(nodeTags, jobTags []string) bool {
	if len(jobTags) == 0 {
		return true
	}
	provided := make(map[string]struct{}, len(nodeTags))
	for _, t := range nodeTags {
		provided[t] = struct{}{}
	}
	for _, t := range jobTags {
		if _, ok := provided[t]; !ok {
			return false
		}
	}
	return true
}
