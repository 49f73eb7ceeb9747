package policy

// Match returns the first rule in document order whose name pattern matches
// the candidate name. Order is significant: a literal rule for "main" listed
// before a catch-all "*" rule claims "main". Rules are written in terms of
// desired protection names, so deciding whether a matched name already
// exists remotely is the reconciler's job, not the matcher's.
func Match(rules []Rule, name string) (*Rule, bool) {
	for i := range rules {
		if rules[i].Matches(name) {
			return &rules[i], true
		}
	}
	return nil, false
}
