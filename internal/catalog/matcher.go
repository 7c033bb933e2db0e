package catalog

import (
	"log/slog"
	"strings"

	"github.com/BTreeMap/EnrollBot/internal/models"
	"github.com/BTreeMap/EnrollBot/internal/util"
)

// Match resolves free text to at most one catalog entry through the synonym
// index. Every key and its variants are compared as normalized substrings of
// the text; the longest matching variant wins and equally long matches keep
// the key that appears first in the index. The winning key must name a
// catalog entry, otherwise there is no match.
func Match(freeText string, entries []models.ProgramEntry, synonyms models.SynonymIndex) (models.ProgramEntry, bool) {
	text := util.Normalize(freeText)
	if text == "" {
		return models.ProgramEntry{}, false
	}

	bestLen := 0
	bestKey := ""
	for _, group := range synonyms {
		key := util.Normalize(group.Key)
		for _, variant := range variantsOf(key, group.Variants) {
			if len(variant) > bestLen && strings.Contains(text, variant) {
				bestLen = len(variant)
				bestKey = key
			}
		}
	}
	if bestKey == "" {
		return models.ProgramEntry{}, false
	}

	for _, e := range entries {
		if util.Normalize(e.ProgramName) == bestKey {
			slog.Debug("Matcher resolved program", "key", bestKey, "edition", e.Edition, "length", bestLen)
			return e, true
		}
	}
	slog.Debug("Matcher key has no catalog entry", "key", bestKey)
	return models.ProgramEntry{}, false
}

func variantsOf(key string, raw []string) []string {
	out := make([]string, 0, len(raw)+1)
	if key != "" {
		out = append(out, key)
	}
	for _, v := range raw {
		if n := util.Normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}
