package orchestrator

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/hupe1980/staffmesh/core"
)

// Candidate is one agent selected for delegation with its classifier
// score.
type Candidate struct {
	Agent core.Agent
	Score float64
}

// Classification is the classifier verdict: either a ranked candidate
// list or a clarification question.
type Classification struct {
	Candidates            []Candidate
	NeedsClarification    bool
	ClarificationQuestion string
}

// Classifier maps a request plus recent history onto candidate agents.
// Implementations must be deterministic for a fixed registry and input.
type Classifier interface {
	Classify(ctx context.Context, message string, history []*core.Message, agents []core.Agent) (*Classification, error)
}

// SlotCheck inspects a selected candidate for a missing required slot in
// the message. A non-empty question forces clarification instead of
// delegation.
type SlotCheck func(message string, agent core.Agent) (question string)

// KeywordClassifierOptions configure the keyword classifier.
type KeywordClassifierOptions struct {
	// MinScore is the confidence floor; candidates below it are dropped.
	MinScore float64
	// MaxCandidates caps the delegation fan-out per request.
	MaxCandidates int
	// SlotChecks run against every surviving candidate.
	SlotChecks []SlotCheck
}

// KeywordClassifier ranks agents by the share of their capability
// keywords found in the message. It is fully deterministic: ties break by
// agent name. There is no default-agent fallback; a request matching
// nothing yields a clarification question.
type KeywordClassifier struct {
	opts KeywordClassifierOptions
}

var _ Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier creates the default deterministic classifier.
func NewKeywordClassifier(optFns ...func(o *KeywordClassifierOptions)) *KeywordClassifier {
	opts := KeywordClassifierOptions{
		MinScore:      0.1,
		MaxCandidates: 3,
		SlotChecks:    []SlotCheck{CalendarSlotCheck},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &KeywordClassifier{opts: opts}
}

// Classify implements Classifier.
func (c *KeywordClassifier) Classify(ctx context.Context, message string, history []*core.Message, agents []core.Agent) (*Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := strings.ToLower(message)

	var candidates []Candidate
	for _, a := range agents {
		if !a.Active() || a.Kind() != core.AgentKindWorker {
			continue
		}
		score := keywordScore(text, a.Capabilities())
		if score >= c.opts.MinScore {
			candidates = append(candidates, Candidate{Agent: a, Score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Agent.Name() < candidates[j].Agent.Name()
	})
	if len(candidates) > c.opts.MaxCandidates {
		candidates = candidates[:c.opts.MaxCandidates]
	}

	if len(candidates) == 0 {
		return &Classification{
			NeedsClarification: true,
			ClarificationQuestion: "I'm not sure what you'd like me to do. " +
				"Could you rephrase your request with a bit more detail?",
		}, nil
	}

	for _, cand := range candidates {
		for _, check := range c.opts.SlotChecks {
			if q := check(message, cand.Agent); q != "" {
				return &Classification{NeedsClarification: true, ClarificationQuestion: q}, nil
			}
		}
	}
	return &Classification{Candidates: candidates}, nil
}

// keywordScore is the matched share of an agent's capability keywords.
func keywordScore(text string, capabilities []core.Capability) float64 {
	var total, matched int
	for _, capability := range capabilities {
		for _, kw := range capability.Keywords {
			total++
			if strings.Contains(text, strings.ToLower(kw)) {
				matched++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

var timeExpression = regexp.MustCompile(`(?i)\b(today|tomorrow|tonight|next|this)\b|` +
	`\b(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b|` +
	`\b(january|february|march|april|may|june|july|august|september|october|november|december)\b|` +
	`\b\d{1,2}(:\d{2})?\s*(am|pm)\b|\b\d{4}-\d{2}-\d{2}\b`)

// CalendarSlotCheck requires a time expression when a scheduling-capable
// agent is selected. Without one the request cannot be scheduled and the
// user is asked for a date instead.
func CalendarSlotCheck(message string, agent core.Agent) string {
	scheduling := false
	for _, capability := range agent.Capabilities() {
		if capability.Tag == "scheduling" || capability.Tag == "calendar" {
			scheduling = true
			break
		}
	}
	if !scheduling {
		return ""
	}
	if timeExpression.MatchString(message) {
		return ""
	}
	return "When would you like to schedule this? Please include a date or time."
}
