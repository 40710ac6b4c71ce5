package interview

import "fmt"

// bank holds the built-in question sets per interview type. The real
// product pulls generated questions from a backend; offline practice
// draws from these.
var bank = map[string][]string{
	"behavioral": {
		"Tell me about a time you disagreed with a teammate. How did you resolve it?",
		"Describe a project that failed. What did you learn?",
		"Give an example of a time you had to deliver under a tight deadline.",
		"Tell me about a time you received difficult feedback.",
		"Describe a situation where you had to influence without authority.",
		"Tell me about the accomplishment you are most proud of.",
		"Describe a time you had to make a decision with incomplete information.",
	},
	"technical": {
		"Walk me through how you would debug a service whose latency doubled overnight.",
		"Explain the difference between optimistic and pessimistic locking.",
		"How would you design a rate limiter for a public API?",
		"What happens between typing a URL and seeing the page?",
		"How do you decide between SQL and a key-value store for a new feature?",
		"Explain how you would roll out a risky schema migration with zero downtime.",
		"Describe a caching strategy and the invalidation problems it brings.",
	},
	"system_design": {
		"Design a URL shortener that serves a billion redirects a day.",
		"Design the backend for a ride-sharing dispatch system.",
		"Design a news feed with ranking and pagination.",
		"Design a distributed job scheduler with at-least-once execution.",
		"Design the storage layer for a collaborative document editor.",
	},
}

// DefaultQuestions builds a question list for the config from the
// built-in bank, cycling when the requested count exceeds the set.
// Unknown types fall back to behavioral.
func DefaultQuestions(cfg Config) []Question {
	texts, ok := bank[cfg.Type]
	if !ok {
		texts = bank["behavioral"]
	}
	count := cfg.QuestionCount
	if count <= 0 {
		count = 5
	}

	questions := make([]Question, count)
	for i := 0; i < count; i++ {
		questions[i] = Question{
			ID:       fmt.Sprintf("q%d", i+1),
			Text:     texts[i%len(texts)],
			Category: cfg.Type,
		}
	}
	return questions
}
