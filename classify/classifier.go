// Package classify scores a query for learning intent. Classification is a
// pure function over fixed keyword, phrase, and pattern tables: no I/O, no
// side effects, identical results for identical queries.
package classify

import (
	"fmt"
	"regexp"
	"strings"
)

type Type string

const (
	TypeLearning Type = "learning"
	TypeGeneral  Type = "general"
	TypeMixed    Type = "mixed"
)

type Result struct {
	Type            Type
	Confidence      float64
	LearningScore   float64
	MatchedKeywords []string
	MatchedPhrases  []string
	Reasoning       string
}

const (
	keywordWeight = 0.1
	keywordCap    = 0.4
	phraseWeight  = 0.3
	phraseCap     = 0.6
	patternBonus  = 0.2
)

var learningKeywords = []string{
	"learn",
	"learning",
	"course",
	"tutorial",
	"study",
	"teach",
	"training",
	"skill",
	"beginner",
	"certification",
	"curriculum",
	"lesson",
	"practice",
	"education",
	"bootcamp",
	"workshop",
}

var learningPhrases = []string{
	"i want to learn",
	"want to learn",
	"how do i learn",
	"how to learn",
	"teach me",
	"best course",
	"recommend a course",
	"recommend courses",
	"learning path",
	"study plan",
	"getting started with",
	"where can i learn",
}

var learningPatterns = []*regexp.Regexp{
	regexp.MustCompile(`how\s+(do|can|should)\s+i\s+(learn|start|study)`),
	regexp.MustCompile(`best\s+(course|tutorial|resource|book)s?\s+(for|on|to)`),
	regexp.MustCompile(`where\s+(can|should)\s+i\s+(learn|study)`),
	regexp.MustCompile(`(want|like)\s+to\s+(learn|study|master)`),
}

// Classify scores the query against the fixed tables and decides its type.
func Classify(query string) Result {
	lower := strings.ToLower(query)

	var keywords []string
	for _, kw := range learningKeywords {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
		}
	}
	keywordScore := keywordWeight * float64(len(keywords))
	if keywordScore > keywordCap {
		keywordScore = keywordCap
	}

	var phrases []string
	for _, phrase := range learningPhrases {
		if strings.Contains(lower, phrase) {
			phrases = append(phrases, phrase)
		}
	}
	phraseScore := phraseWeight * float64(len(phrases))
	if phraseScore > phraseCap {
		phraseScore = phraseCap
	}

	patternMatched := false
	for _, pattern := range learningPatterns {
		if pattern.MatchString(lower) {
			patternMatched = true
			break
		}
	}

	score := keywordScore + phraseScore
	if patternMatched {
		score += patternBonus
	}
	score = clamp(score)

	result := Result{
		LearningScore:   score,
		MatchedKeywords: keywords,
		MatchedPhrases:  phrases,
		Reasoning: fmt.Sprintf("%d keywords, %d phrases, pattern=%t, score=%.2f",
			len(keywords), len(phrases), patternMatched, score),
	}

	switch {
	case score >= 0.6 || len(phrases) > 0:
		result.Type = TypeLearning
		result.Confidence = clamp(score + 0.2)
	case score >= 0.3 && len(keywords) >= 2:
		result.Type = TypeMixed
		result.Confidence = score
	case score >= 0.1 && len(keywords) >= 1:
		result.Type = TypeMixed
		result.Confidence = score * 0.8
	default:
		result.Type = TypeGeneral
		result.Confidence = 0.9
	}

	return result
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
