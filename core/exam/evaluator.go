package exam

import (
	"math/rand"
	"strings"
)

// mockable
var randIntn = rand.Intn

// Evaluator scores a single answer to a question. Implementations may be
// swapped for real content analysis without touching callers.
type Evaluator interface {
	Evaluate(q Question, answer string) QuestionResult
}

// essayEvaluator produces plausible-looking scores without real content
// analysis. The score is driven by answer length relative to the question's
// word limit plus a random quality component.
type essayEvaluator struct{}

func NewEssayEvaluator() Evaluator { return essayEvaluator{} }

const (
	maxWordScore    = 60
	maxQualityScore = 40
)

func (essayEvaluator) Evaluate(q Question, answer string) QuestionResult {
	res := QuestionResult{MaxScore: q.Marks}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		res.Feedback = "No answer provided. Please submit a response to receive a score."
		res.Strengths = []string{}
		res.Improvements = []string{"Provide a complete answer to the question"}
		return res
	}

	wordLimit := q.WordLimit
	if wordLimit <= 0 {
		wordLimit = 200
	}
	wordCount := len(strings.Fields(answer))

	wordScore := wordCount * maxWordScore / wordLimit
	if wordScore > maxWordScore {
		wordScore = maxWordScore
	}
	score := wordScore + randIntn(maxQualityScore)
	if score > 100 {
		score = 100
	}
	res.Score = score

	switch {
	case score >= 80:
		res.Feedback = "Excellent response! Comprehensive and well-structured."
		res.Strengths = []string{"Clear explanation", "Good examples provided", "Well-organized thoughts"}
		res.Improvements = []string{"Consider adding more real-world applications"}
	case score >= 60:
		res.Feedback = "Good attempt. Covers the main points but could use more detail."
		res.Strengths = []string{"Correct concepts identified", "Relevant points mentioned"}
		res.Improvements = []string{"Add more specific examples", "Expand on key concepts"}
	case score >= 40:
		res.Feedback = "Basic understanding shown. Needs more depth and clarity."
		res.Strengths = []string{"Attempted to address the question"}
		res.Improvements = []string{"Provide more detailed explanations", "Include specific examples", "Structure your answer better"}
	default:
		res.Feedback = "Needs significant improvement. Please review the topic."
		res.Strengths = []string{}
		res.Improvements = []string{"Study the fundamental concepts", "Practice with simpler questions first", "Focus on understanding before writing"}
	}
	return res
}
