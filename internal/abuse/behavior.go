package abuse

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/domain"
	"github.com/matthewshammond/MailBridge/internal/store"
)

const profileHistoryLimit = 10

// Profile is the accumulated per-origin history, held as a JSON blob in the
// shared store under a 24h TTL.
type Profile struct {
	Total           int            `json:"total"`
	History         []ProfileEntry `json:"history"`
	RandomNameCount int            `json:"random_name_count"`
	RandomBodyCount int            `json:"random_body_count"`
	Domains         []string       `json:"domains"`
}

type ProfileEntry struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Body            string `json:"body"`
	LooksRandomName bool   `json:"looks_random_name"`
	LooksRandomBody bool   `json:"looks_random_body"`
}

// Tracker is the cross-submission layer. It runs after the single-message
// heuristics pass, and its state update is unconditional so a drifting
// attacker keeps feeding the profile even with clean-looking submissions.
type Tracker struct {
	store store.Store
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewTracker(s store.Store, ttl time.Duration, log logrus.FieldLogger) *Tracker {
	return &Tracker{store: s, ttl: ttl, log: log}
}

// Observe records msg against its origin's profile and reports whether the
// origin is now considered suspicious. Store failures fail open: profiling is
// best-effort and must not take the intake path down with it.
func (t *Tracker) Observe(ctx context.Context, msg *domain.Message) bool {
	key := "profile:" + msg.OriginAddress

	profile := &Profile{}
	if raw, err := t.store.Get(ctx, key); err == nil {
		if err := json.Unmarshal([]byte(raw), profile); err != nil {
			profile = &Profile{}
		}
	} else if err != store.ErrNotFound {
		t.log.WithError(err).Warn("behavior profile read failed")
		return false
	}

	// The verdict covers prior traffic from this origin. The current
	// submission already holds a Layer A pass; what condemns it is the
	// pattern of what came before, so a now-legitimate-looking message from
	// a profiled origin is still flagged.
	suspicious := profile.Suspicious()

	entry := ProfileEntry{
		Name:            msg.SenderName,
		Email:           msg.SenderEmail,
		Body:            truncate(msg.Body, 256),
		LooksRandomName: reducedRandom(msg.SenderName),
		LooksRandomBody: reducedRandom(msg.Body),
	}

	profile.Total++
	profile.History = append(profile.History, entry)
	if len(profile.History) > profileHistoryLimit {
		profile.History = profile.History[len(profile.History)-profileHistoryLimit:]
	}
	if entry.LooksRandomName {
		profile.RandomNameCount++
	}
	if entry.LooksRandomBody {
		profile.RandomBodyCount++
	}
	profile.addDomain(emailDomain(msg.SenderEmail))

	if raw, err := json.Marshal(profile); err == nil {
		if err := t.store.SetWithTTL(ctx, key, string(raw), t.ttl); err != nil {
			t.log.WithError(err).Warn("behavior profile write failed")
		}
	}

	return suspicious
}

// reducedRandom is the profile-feeding classifier: a tighter entropy
// threshold plus the unambiguous pattern checks. It flags more than the
// single-message layer on purpose; a flag here never rejects on its own, it
// only accumulates, so false positives are cheap where in Layer A they would
// bounce a real person.
func reducedRandom(text string) bool {
	cleaned := cleanText(text)
	if cleaned == "" {
		return false
	}
	if len(cleaned) >= 8 && entropy(cleaned) > entropyReduced && !naturalSentence(text) {
		return true
	}
	if hasRepeatRun(cleaned, 3) {
		return true
	}
	for _, row := range keyboardRuns {
		if strings.Contains(cleaned, row) {
			return true
		}
	}
	if rareLetterFraction(cleaned) > rareLetterFracMax {
		return true
	}
	return runLength(cleaned, false) >= consonantRunMax || runLength(cleaned, true) >= vowelRunMax
}

// Suspicious applies the behavioral verdict over the accumulated counters.
func (p *Profile) Suspicious() bool {
	if p.Total < 2 {
		return false
	}
	nameRatio := float64(p.RandomNameCount) / float64(p.Total)
	bodyRatio := float64(p.RandomBodyCount) / float64(p.Total)

	if nameRatio >= 0.8 && bodyRatio >= 0.8 && len(p.Domains) >= 2 {
		return true
	}
	return bodyRatio >= 0.9
}

func (p *Profile) addDomain(domain string) {
	if domain == "" {
		return
	}
	for _, d := range p.Domains {
		if d == domain {
			return
		}
	}
	p.Domains = append(p.Domains, domain)
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
