package memory

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// EntityKind classifies an extracted entity.
type EntityKind string

const (
	// EntityDocument marks terms referring to uploaded material.
	EntityDocument EntityKind = "document"
	// EntityConcept marks abstract/derived nouns.
	EntityConcept EntityKind = "concept"
	// EntityTopic is the default classification.
	EntityTopic EntityKind = "topic"
)

// Entity is a frequently mentioned non-stop-word term.
type Entity struct {
	// Name is the lowercased term.
	Name string
	// Kind is the heuristic classification.
	Kind EntityKind
	// Frequency is the term's occurrence count across the conversation.
	Frequency int
}

// maxEntityNote caps how many entities the system note lists.
const maxEntityNote = 5

// stopWords covers common English and Portuguese function words that carry
// no topical signal.
var stopWords = map[string]bool{
	// English
	"about": true, "after": true, "again": true, "also": true, "because": true,
	"been": true, "before": true, "being": true, "between": true, "both": true,
	"could": true, "does": true, "doing": true, "down": true, "each": true,
	"from": true, "have": true, "having": true, "here": true, "into": true,
	"just": true, "like": true, "make": true, "more": true, "most": true,
	"only": true, "other": true, "over": true, "same": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"this": true, "those": true, "through": true, "under": true, "very": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"will": true, "with": true, "would": true, "your": true,
	// Portuguese
	"ainda": true, "aquela": true, "aquele": true, "assim": true, "como": true,
	"depois": true, "dela": true, "dele": true, "deles": true, "desta": true,
	"deste": true, "elas": true, "eles": true, "entre": true, "essa": true,
	"esse": true, "esta": true, "este": true, "isso": true, "isto": true,
	"mais": true, "mas": true, "mesmo": true, "muito": true, "nos": true,
	"nossa": true, "nosso": true, "para": true, "pela": true, "pelo": true,
	"pode": true, "porque": true, "qual": true, "quando": true, "quem": true,
	"sem": true, "ser": true, "seu": true, "sua": true, "são": true,
	"também": true, "tem": true, "tudo": true, "uma": true, "você": true,
}

// ExtractEntities tokenizes the conversation and returns terms whose
// frequency meets the threshold, most frequent first (alphabetical on
// ties so output is deterministic).
func ExtractEntities(msgs []*core.Message, threshold int) []Entity {
	freq := make(map[string]int)
	for _, msg := range msgs {
		for _, token := range tokenize(msg.Content) {
			freq[token]++
		}
	}

	var entities []Entity
	for term, n := range freq {
		if n < threshold {
			continue
		}
		entities = append(entities, Entity{Name: term, Kind: classify(term), Frequency: n})
	}
	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Frequency != entities[j].Frequency {
			return entities[i].Frequency > entities[j].Frequency
		}
		return entities[i].Name < entities[j].Name
	})
	return entities
}

// tokenize lowercases content, splits on whitespace and punctuation, and
// drops short or purely numeric tokens and stop words.
func tokenize(content string) []string {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 4 {
			continue
		}
		if isNumeric(f) {
			continue
		}
		if stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// isNumeric reports whether s consists only of digits.
func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// classify applies the term heuristics: references to uploaded material are
// documents, abstract/derived nouns are concepts, everything else a topic.
func classify(term string) EntityKind {
	if strings.Contains(term, "doc") || strings.Contains(term, "pdf") || strings.Contains(term, "arquivo") {
		return EntityDocument
	}
	if strings.HasSuffix(term, "ção") || strings.HasSuffix(term, "mento") || strings.Contains(term, "conceito") {
		return EntityConcept
	}
	return EntityTopic
}

// entityNote builds the "Key topics" system note, or nil when no entity
// qualifies.
func entityNote(msgs []*core.Message, threshold int) *core.ChatMessage {
	entities := ExtractEntities(msgs, threshold)
	if len(entities) == 0 {
		return nil
	}
	if len(entities) > maxEntityNote {
		entities = entities[:maxEntityNote]
	}
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return &core.ChatMessage{
		Role:    core.ChatRoleSystem,
		Content: "Key topics in this conversation: " + strings.Join(names, ", "),
	}
}
