package audit

// Entry is one line in the hash-chained JSONL mutation log: a single
// protect or unprotect call that glprotect issued and GitLab accepted.
// All fields are flat scalars to guarantee deterministic json.Marshal
// field order for reproducible hashing.
type Entry struct {
	Timestamp string `json:"ts"`
	RunID     string `json:"run_id"`
	Project   string `json:"project"`
	Category  string `json:"category"`
	Target    string `json:"target"`
	Rule      string `json:"rule"`
	Op        string `json:"op"`
	Merge     string `json:"merge_access_level,omitempty"`
	Push      string `json:"push_access_level,omitempty"`
	PrevHash  string `json:"prev_hash"`
}
