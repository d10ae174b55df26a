package resolver

// isFullHexOID reports whether name is a full, lowercase hex object id
// of exactly 40 (SHA-1) or 64 (SHA-256) characters. Short or mixed-case
// ids are rejected here rather than being handed to the object store,
// per spec.md §4.C: "reject any other form with ENOENT."
func isFullHexOID(name string) bool {
	if len(name) != 40 && len(name) != 64 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
