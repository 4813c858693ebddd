package assembler

import (
	"fmt"
	"strings"

	"github.com/compumax/graphrag/model"
)

// Assemble renders ranked evidence into one context text for generation.
// Each unit appears in rank order with an inline citation marker, and the
// returned citation list holds the source descriptor for each marker, so
// marker [n] resolves to the n-1th list entry. The text is truncated at
// budgetChars on unit boundaries, never mid unit; a unit that would push
// the text over the budget is dropped together with everything after it.
// Pure transformation, no side effects.
func Assemble(result *model.RetrievalResult, budgetChars int) (string, []string) {
	if result == nil || len(result.Evidence) == 0 || budgetChars <= 0 {
		return "", nil
	}

	var builder strings.Builder
	var citations []string

	for _, unit := range result.Evidence {
		rendered := fmt.Sprintf("[%d] %s", len(citations)+1, unit.Text)

		length := builder.Len() + len(rendered)
		if builder.Len() > 0 {
			length += len(unitSeparator)
		}
		if length > budgetChars {
			break
		}

		if builder.Len() > 0 {
			builder.WriteString(unitSeparator)
		}
		builder.WriteString(rendered)
		citations = append(citations, unit.Provenance.Descriptor())
	}

	return builder.String(), citations
}

const unitSeparator = "\n\n"
