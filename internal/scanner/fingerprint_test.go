package scanner

import (
	"testing"

	"github.com/complywatch/complywatch/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestIssueFingerprint_OrderIndependent(t *testing.T) {
	issues := []models.Issue{
		{Category: "privacy", Severity: "high", StableID: "missing-policy"},
		{Category: "cookies", Severity: "medium", StableID: "no-consent-banner"},
		{Category: "accessibility", Severity: "low", StableID: "missing-alt-text"},
	}
	reordered := []models.Issue{issues[2], issues[0], issues[1]}

	assert.Equal(t, IssueFingerprint(issues), IssueFingerprint(reordered))
}

func TestIssueFingerprint_CaseAndWhitespaceInsensitive(t *testing.T) {
	a := []models.Issue{{Category: "Privacy", Severity: "HIGH", StableID: "missing-policy"}}
	b := []models.Issue{{Category: " privacy ", Severity: "high", StableID: "missing-policy "}}

	assert.Equal(t, IssueFingerprint(a), IssueFingerprint(b))
}

func TestIssueFingerprint_DifferentSetsDiffer(t *testing.T) {
	a := []models.Issue{{Category: "privacy", Severity: "high", StableID: "missing-policy"}}
	b := []models.Issue{{Category: "privacy", Severity: "medium", StableID: "missing-policy"}}

	assert.NotEqual(t, IssueFingerprint(a), IssueFingerprint(b))
}

func TestIssueFingerprint_EmptySetIsStable(t *testing.T) {
	assert.Equal(t, IssueFingerprint(nil), IssueFingerprint([]models.Issue{}))
}

func TestNormalizeIssues_SortedTuples(t *testing.T) {
	issues := []models.Issue{
		{Category: "privacy", Severity: "high", StableID: "b"},
		{Category: "cookies", Severity: "medium", StableID: "a"},
	}

	tuples := NormalizeIssues(issues)

	assert.Equal(t, []string{"cookies|medium|a", "privacy|high|b"}, tuples)
}
