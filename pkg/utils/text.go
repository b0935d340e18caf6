package utils

// Preview returns the first maxLen bytes of s. Used for the lossy text
// preview stored in vector metadata; the full text lives in the ledger.
func Preview(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
