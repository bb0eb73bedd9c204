package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/complywatch/complywatch/internal/models"
)

// IssueFingerprint computes a stable, order-independent hash over the
// normalized (category, severity, stable_id) tuples of an issue set. Two
// snapshots with the same issues in any order produce the same fingerprint,
// so issue-set drift is detected with a single string comparison instead of
// a per-issue diff.
func IssueFingerprint(issues []models.Issue) string {
	tuples := NormalizeIssues(issues)
	hash := sha256.Sum256([]byte(strings.Join(tuples, "\n")))
	return hex.EncodeToString(hash[:])
}

// NormalizeIssues renders the issue set as sorted "category|severity|id"
// tuples, lowercased and trimmed. The normalized form is also what the
// change detector prints when describing an issue-set change.
func NormalizeIssues(issues []models.Issue) []string {
	tuples := make([]string, 0, len(issues))
	for _, issue := range issues {
		tuple := strings.ToLower(strings.TrimSpace(issue.Category)) + "|" +
			strings.ToLower(strings.TrimSpace(issue.Severity)) + "|" +
			strings.TrimSpace(issue.StableID)
		tuples = append(tuples, tuple)
	}
	sort.Strings(tuples)
	return tuples
}
