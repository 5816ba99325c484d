// internal/nlq/tagger/tagger.go

// Package tagger recognizes entities inside raw query text: table names,
// live domain values, pronouns, temporal expressions, numeric comparisons,
// and status/location keywords. Matcher passes run in strict priority order
// over an index-occupancy set, so no two emitted spans ever overlap and
// output is deterministic for a given lexicon/cache snapshot.
package tagger

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
	"querydesk/internal/nlq/domaincache"
	"querydesk/internal/nlq/lexicon"
)

// Context carries the per-request identity and clock the tagger resolves
// pronouns and temporal phrases against.
type Context struct {
	UserID string
	Now    time.Time
}

var pronouns = map[string]bool{
	"me": true, "my": true, "mine": true, "i": true, "myself": true,
}

var numericPattern = regexp.MustCompile(
	`(?i)\b(above|over|greater than|more than|below|under|less than)\s+(\d+)\b`)

type Tagger struct {
	lex    *lexicon.Lexicon
	cache  *domaincache.Cache
	logger logger.Logger
}

func New(lex *lexicon.Lexicon, cache *domaincache.Cache, log logger.Logger) *Tagger {
	return &Tagger{
		lex:    lex,
		cache:  cache,
		logger: log.With(map[string]interface{}{"component": "tagger"}),
	}
}

// Tag runs every matcher pass over text and returns the recognized entities
// ordered by span start. It never panics outward; a failure mid-pass yields
// whatever was recognized up to that point.
func (t *Tagger) Tag(text string, rc Context) (entities []models.EntityMatch) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("tagger pass panicked, returning partial result", map[string]interface{}{
				"panic": r,
			})
			sortBySpan(entities)
		}
	}()

	lower := strings.ToLower(text)
	tokens := tokenize(text)
	occ := newOccupancy(len(text))

	entities = append(entities, t.tagTables(text, tokens, occ)...)
	entities = append(entities, t.tagPhrases(text, lower, occ)...)
	entities = append(entities, t.tagDomainValues(tokens, occ)...)
	entities = append(entities, t.tagPronouns(tokens, occ, rc)...)
	entities = append(entities, t.tagTemporal(text, tokens, occ, rc)...)
	entities = append(entities, t.tagNumeric(text, occ)...)
	entities = append(entities, t.tagKeywords(tokens, occ)...)

	sortBySpan(entities)
	return entities
}

// pass 1: table names, highest priority.
func (t *Tagger) tagTables(text string, tokens []token, occ *occupancy) []models.EntityMatch {
	var out []models.EntityMatch
	for _, tok := range tokens {
		table, ok := t.lex.CanonicalTable(tok.Lower)
		if !ok || !occ.free(tok.Start, tok.End) {
			continue
		}
		confidence := 0.9
		if tok.Lower == table {
			confidence = 0.95
		}
		occ.claim(tok.Start, tok.End)
		out = append(out, models.EntityMatch{
			Text:           tok.Text,
			Kind:           models.EntityTable,
			Table:          table,
			CanonicalValue: table,
			Span:           models.Span{Start: tok.Start, End: tok.End},
			Confidence:     confidence,
		})
	}
	return out
}

// pass 2: multi-word phrases from the domain cache and the synonym
// dictionary, longest first so longer phrases win ties over sub-matches.
func (t *Tagger) tagPhrases(text, lower string, occ *occupancy) []models.EntityMatch {
	type phrase struct {
		text      string
		kind      models.EntityKind
		canonical string
	}

	var phrases []phrase
	for _, p := range t.cache.Phrases() {
		phrases = append(phrases, phrase{text: p, kind: models.EntityDomainValue})
	}
	for _, sp := range t.lex.SynonymPhrases() {
		phrases = append(phrases, phrase{text: sp.Text, kind: sp.Kind, canonical: sp.Canonical})
	}
	sort.SliceStable(phrases, func(i, j int) bool {
		if len(phrases[i].text) != len(phrases[j].text) {
			return len(phrases[i].text) > len(phrases[j].text)
		}
		return phrases[i].text < phrases[j].text
	})

	var out []models.EntityMatch
	for _, p := range phrases {
		for _, span := range findOccurrences(lower, p.text) {
			if !occ.free(span[0], span[1]) {
				continue
			}

			match := models.EntityMatch{
				Text:              text[span[0]:span[1]],
				Kind:              p.kind,
				CanonicalValue:    p.canonical,
				Span:              models.Span{Start: span[0], End: span[1]},
				Confidence:        0.8,
				IsFilterCandidate: true,
			}
			if p.kind == models.EntityDomainValue {
				entries := t.cache.Lookup(p.text)
				if len(entries) == 0 {
					continue // cache moved underneath us; omit the candidate
				}
				applyDomainEntry(&match, entries, 0.9)
			}
			occ.claim(span[0], span[1])
			out = append(out, match)
		}
	}
	return out
}

// pass 3: single-word domain values — exact cache key first, then fuzzy
// containment for tokens of length >= 3.
func (t *Tagger) tagDomainValues(tokens []token, occ *occupancy) []models.EntityMatch {
	var out []models.EntityMatch

	for _, tok := range tokens {
		if !occ.free(tok.Start, tok.End) {
			continue
		}
		entries := t.cache.Lookup(tok.Lower)
		if len(entries) == 0 {
			continue
		}
		confidence := 0.85
		if strings.ToLower(entries[0].Value) == tok.Lower {
			confidence = 0.95
		}
		occ.claim(tok.Start, tok.End)
		match := models.EntityMatch{
			Text:              tok.Text,
			Kind:              models.EntityDomainValue,
			Span:              models.Span{Start: tok.Start, End: tok.End},
			IsFilterCandidate: true,
		}
		applyDomainEntry(&match, entries, confidence)
		out = append(out, match)
	}

	for _, tok := range tokens {
		if len(tok.Lower) < 3 || !occ.free(tok.Start, tok.End) {
			continue
		}
		// words with their own higher-priority meaning never fuzzy-match
		if pronouns[tok.Lower] || isTemporalWord(tok.Lower) {
			continue
		}
		entries := t.cache.FuzzyCandidates(tok.Lower)
		if len(entries) == 0 {
			continue
		}
		occ.claim(tok.Start, tok.End)
		match := models.EntityMatch{
			Text:              tok.Text,
			Kind:              models.EntityDomainValue,
			Span:              models.Span{Start: tok.Start, End: tok.End},
			IsFilterCandidate: true,
		}
		applyDomainEntry(&match, entries, 0.8)
		out = append(out, match)
	}
	return out
}

// pass 4: pronouns resolved to the current user identity.
func (t *Tagger) tagPronouns(tokens []token, occ *occupancy, rc Context) []models.EntityMatch {
	if rc.UserID == "" {
		return nil // no identity, no resolution
	}
	var out []models.EntityMatch
	for _, tok := range tokens {
		if !pronouns[tok.Lower] || !occ.free(tok.Start, tok.End) {
			continue
		}
		occ.claim(tok.Start, tok.End)
		out = append(out, models.EntityMatch{
			Text:              tok.Text,
			Kind:              models.EntityPronoun,
			CanonicalValue:    rc.UserID,
			Span:              models.Span{Start: tok.Start, End: tok.End},
			Confidence:        0.9,
			IsFilterCandidate: true,
		})
	}
	return out
}

// pass 5: temporal expressions. Two-token phrases consume both tokens so
// the second token cannot be independently re-tagged.
func (t *Tagger) tagTemporal(text string, tokens []token, occ *occupancy, rc Context) []models.EntityMatch {
	var out []models.EntityMatch
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if (tok.Lower == "this" || tok.Lower == "last") && i+1 < len(tokens) {
			next := tokens[i+1]
			if tr, canonical, ok := resolveRelative(tok.Lower, next.Lower, rc.Now); ok {
				if occ.free(tok.Start, next.End) {
					occ.claim(tok.Start, next.End)
					out = append(out, models.EntityMatch{
						Text:              text[tok.Start:next.End],
						Kind:              models.EntityTemporal,
						CanonicalValue:    canonical,
						Span:              models.Span{Start: tok.Start, End: next.End},
						Confidence:        0.9,
						IsFilterCandidate: true,
						TimeRange:         tr,
					})
					i++ // both tokens consumed
					continue
				}
			}
		}

		if tr, canonical, ok := resolveSingleDay(tok.Lower, rc.Now); ok {
			if occ.free(tok.Start, tok.End) {
				occ.claim(tok.Start, tok.End)
				out = append(out, models.EntityMatch{
					Text:              tok.Text,
					Kind:              models.EntityTemporal,
					CanonicalValue:    canonical,
					Span:              models.Span{Start: tok.Start, End: tok.End},
					Confidence:        0.9,
					IsFilterCandidate: true,
					TimeRange:         tr,
				})
			}
		}
	}
	return out
}

// pass 6: numeric comparison filters, captured as one entity spanning the
// whole phrase.
func (t *Tagger) tagNumeric(text string, occ *occupancy) []models.EntityMatch {
	var out []models.EntityMatch
	for _, idx := range numericPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := idx[0], idx[1]
		if !occ.free(start, end) {
			continue
		}
		word := strings.ToLower(text[idx[2]:idx[3]])
		value, err := strconv.ParseInt(text[idx[4]:idx[5]], 10, 64)
		if err != nil {
			continue
		}

		op := models.OpGT
		switch word {
		case "below", "under", "less than":
			op = models.OpLT
		}

		occ.claim(start, end)
		out = append(out, models.EntityMatch{
			Text:              text[start:end],
			Kind:              models.EntityNumericFilter,
			CanonicalValue:    strconv.FormatInt(value, 10),
			Span:              models.Span{Start: start, End: end},
			Confidence:        0.9,
			IsFilterCandidate: true,
			Compare:           &models.NumericCompare{Operator: op, Value: value},
		})
	}
	return out
}

// pass 7: single-word status and location keywords.
func (t *Tagger) tagKeywords(tokens []token, occ *occupancy) []models.EntityMatch {
	var out []models.EntityMatch
	for _, tok := range tokens {
		if !occ.free(tok.Start, tok.End) {
			continue
		}
		if canonical, ok := t.lex.StatusSynonyms[tok.Lower]; ok {
			occ.claim(tok.Start, tok.End)
			out = append(out, models.EntityMatch{
				Text:              tok.Text,
				Kind:              models.EntityStatusFilter,
				CanonicalValue:    canonical,
				Span:              models.Span{Start: tok.Start, End: tok.End},
				Confidence:        0.8,
				IsFilterCandidate: true,
			})
			continue
		}
		if canonical, ok := t.lex.LocationTerms[tok.Lower]; ok {
			occ.claim(tok.Start, tok.End)
			out = append(out, models.EntityMatch{
				Text:              tok.Text,
				Kind:              models.EntityLocationFilter,
				CanonicalValue:    canonical,
				Span:              models.Span{Start: tok.Start, End: tok.End},
				Confidence:        0.8,
				IsFilterCandidate: true,
			})
		}
	}
	return out
}

// applyDomainEntry fills the canonical fields from the best cache entry and
// records the rest as disambiguation alternatives.
func applyDomainEntry(match *models.EntityMatch, entries []*domaincache.Entry, confidence float64) {
	best := entries[0]
	match.Category = best.Category
	match.Table = best.Table
	match.CanonicalValue = best.Value
	match.CanonicalID = best.ID
	match.Confidence = confidence
	for _, e := range entries[1:] {
		match.Alternatives = append(match.Alternatives, models.Alternative{
			ID:         e.ID,
			Value:      e.Value,
			Confidence: confidence,
		})
	}
}

func isTemporalWord(w string) bool {
	switch w {
	case "today", "yesterday", "this", "last", "week", "month", "year":
		return true
	}
	return false
}

func sortBySpan(entities []models.EntityMatch) {
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Span.Start < entities[j].Span.Start
	})
}
