package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"menurag/internal/domain"
)

// FrequencySummarizer picks the passages whose non-stopword terms occur
// most often across the input.
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern:    regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentencePattern: regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:       defaultStopwords(),
	}
}

const defaultMaxSentences = 5

// Summarize returns the maxSentences sentences of text whose terms are most
// frequent across the text, in their original order.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	sentences := s.sentencePattern.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}
	out := make([]string, 0, len(sentences))
	for _, idx := range s.rank(sentences, maxSentences) {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

// SummarizeMenu picks the maxItems records whose descriptions best represent
// the menu and lists them as "Name: description." in menu order. Records
// without a description are skipped.
func (s *FrequencySummarizer) SummarizeMenu(records []domain.Record, maxItems int) (string, error) {
	var names, descriptions []string
	for _, r := range records {
		d := strings.TrimSpace(r.Description)
		if d == "" {
			continue
		}
		if !strings.ContainsAny(d[len(d)-1:], ".!?") {
			d += "."
		}
		names = append(names, strings.TrimSpace(r.Name))
		descriptions = append(descriptions, d)
	}
	if len(descriptions) == 0 {
		return "", nil
	}
	out := make([]string, 0, len(descriptions))
	for _, idx := range s.rank(descriptions, maxItems) {
		out = append(out, names[idx]+": "+descriptions[idx])
	}
	return strings.Join(out, " "), nil
}

// rank scores each passage by the normalised frequency of its non-stopword
// terms, divided by the square root of its length, and returns the indices
// of the best k in ascending order. Equal scores keep passage order.
func (s *FrequencySummarizer) rank(passages []string, k int) []int {
	if k <= 0 {
		k = defaultMaxSentences
	}
	k = min(k, len(passages))

	tokens := make([][]string, len(passages))
	weight := map[string]float64{}
	var top float64
	for i, p := range passages {
		tokens[i] = s.tokens(p)
		for _, tok := range tokens[i] {
			if _, stop := s.stopwords[tok]; stop {
				continue
			}
			weight[tok]++
			top = max(top, weight[tok])
		}
	}
	if top > 0 {
		for tok, w := range weight {
			weight[tok] = w / top
		}
	}

	scores := make([]float64, len(passages))
	for i, toks := range tokens {
		if len(toks) == 0 {
			continue
		}
		for _, tok := range toks {
			scores[i] += weight[tok]
		}
		scores[i] /= math.Sqrt(float64(len(toks)))
	}

	order := make([]int, len(passages))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	picked := order[:k]
	sort.Ints(picked)
	return picked
}

func (s *FrequencySummarizer) tokens(text string) []string {
	lower := strings.ToLower(text)
	return s.tokenPattern.FindAllString(lower, -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
