package toolsetbuilder

import (
	"regexp"
	"sort"
	"strings"
)

const (
	minTokenLen  = 2
	maxTokens    = 20
	defaultLimit = 20
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// tokenize implements spec §4.8's "tokenize the query (lowercase,
// non-alphanumeric split, length ≥ 2, cap 20 tokens)".
func tokenize(query string) []string {
	lowered := strings.ToLower(query)
	parts := nonAlnum.Split(lowered, -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) < minTokenLen {
			continue
		}
		tokens = append(tokens, p)
		if len(tokens) == maxTokens {
			break
		}
	}
	return tokens
}

// Rank implements spec §4.8's catalog ranking: "score each item by the
// count of tokens substring-found in name + description; sort by score
// DESC then key ASC; take first limit (default 20). With no tokens,
// truncate insertion order."
func Rank(query string, items []ComponentItem, limit int) []ComponentItem {
	if limit <= 0 {
		limit = defaultLimit
	}
	tokens := tokenize(query)

	if len(tokens) == 0 {
		if len(items) > limit {
			return items[:limit]
		}
		return items
	}

	type scored struct {
		item  ComponentItem
		score int
	}
	ranked := make([]scored, len(items))
	for i, item := range items {
		haystack := strings.ToLower(item.Name + " " + item.Description)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(haystack, tok) {
				score++
			}
		}
		ranked[i] = scored{item: item, score: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].item.Key < ranked[j].item.Key
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]ComponentItem, len(ranked))
	for i, r := range ranked {
		out[i] = r.item
	}
	return out
}
