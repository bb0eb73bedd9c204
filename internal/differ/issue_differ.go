package differ

import (
	"strings"

	"github.com/complywatch/complywatch/internal/models"
	"github.com/complywatch/complywatch/internal/scanner"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// IssueDiffer renders a human-readable line diff between two issue sets for
// use in change descriptions and notifications.
type IssueDiffer struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewIssueDiffer creates a new IssueDiffer.
func NewIssueDiffer() *IssueDiffer {
	return &IssueDiffer{dmp: diffmatchpatch.New()}
}

// Describe diffs the normalized tuple listings of the two issue sets and
// renders added tuples with a "+" prefix and removed ones with a "-" prefix.
// Unchanged tuples are omitted to keep descriptions short.
func (id *IssueDiffer) Describe(previous, current []models.Issue) string {
	oldText := strings.Join(scanner.NormalizeIssues(previous), "\n")
	newText := strings.Join(scanner.NormalizeIssues(current), "\n")

	diffs := id.dmp.DiffMain(oldText+"\n", newText+"\n", true)
	diffs = id.dmp.DiffCleanupSemantic(diffs)

	var builder strings.Builder
	builder.WriteString("issue set changed")
	for _, diff := range diffs {
		prefix := ""
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		for _, line := range strings.Split(strings.Trim(diff.Text, "\n"), "\n") {
			if line == "" {
				continue
			}
			builder.WriteString("\n")
			builder.WriteString(prefix)
			builder.WriteString(" ")
			builder.WriteString(line)
		}
	}
	return builder.String()
}
