package document

import (
	"fmt"

	"github.com/agnivade/levenshtein"
	"github.com/aretw0/docket/pkg/domain"
)

// Suggest returns the registered action type closest to actionType, for
// "did you mean" hints on unknown actions. It reports false when nothing is
// close enough to be a plausible typo.
func Suggest(doc *Document, actionType string) (string, bool) {
	best, bestDist := "", -1
	for _, candidate := range doc.ActionTypes() {
		d := levenshtein.ComputeDistance(actionType, candidate)
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	if bestDist < 0 || bestDist == 0 {
		return "", false
	}
	if bestDist > 3 || bestDist*2 >= len(best) {
		return "", false
	}
	return best, true
}

// UnknownActionError wraps domain.ErrUnknownAction for actionType, adding a
// suggestion when one is close enough.
func UnknownActionError(doc *Document, actionType string) error {
	if s, ok := Suggest(doc, actionType); ok {
		return fmt.Errorf("%w %q; did you mean %q?", domain.ErrUnknownAction, actionType, s)
	}
	return fmt.Errorf("%w %q", domain.ErrUnknownAction, actionType)
}
