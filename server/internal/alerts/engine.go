package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/focusmonitor/focusmonitor/pkg/report"
	"github.com/focusmonitor/focusmonitor/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert is one alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"` // ULID, sortable by fire time
	RuleName   string     `json:"rule_name"`
	SessionID  string     `json:"session_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates alert rules against minute scores and delivers webhook
// notifications when rules fire or resolve. It is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	client   *http.Client
	limiter  *rate.Limiter
	now      func() time.Time

	// deliverFn sends webhooks; tests replace it to run synchronously.
	deliverFn func(*Alert)

	mu       sync.Mutex
	active   map[string]*Alert    // key: "rule:session"
	lastFire map[string]time.Time // for cooldown
	history  []*Alert             // resolved, newest last
}

// New creates an Engine. With no rules Evaluate is a no-op.
func New(cfg config.AlertsConfig) *Engine {
	e := &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: webhookTimeout},
		limiter:  newWebhookLimiter(),
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
	e.deliverFn = func(a *Alert) { go e.deliver(a) }
	return e
}

// Evaluate tests every rule against the session's latest minute score.
// Rules that fire open an alert unless still cooling down; firing alerts
// whose condition no longer holds are resolved.
func (e *Engine) Evaluate(sessionID string, sc *report.ScoreRecord) {
	if len(e.rules) == 0 || sc == nil {
		return
	}

	now := e.now()
	for _, rule := range e.rules {
		key := rule.Name + ":" + sessionID
		fires, value := evalCondition(rule.Condition, sc)

		var notify *Alert
		e.mu.Lock()
		if fires {
			notify = e.fire(rule, key, sessionID, value, now)
		} else {
			notify = e.resolve(key, now)
		}
		e.mu.Unlock()

		if notify != nil {
			e.deliverFn(notify)
		}
	}
}

// fire must be called with mu held. It returns a copy to deliver, or nil.
func (e *Engine) fire(rule config.AlertRule, key, sessionID string, value float64, now time.Time) *Alert {
	if _, firing := e.active[key]; firing {
		return nil
	}
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if last, ok := e.lastFire[key]; ok && now.Sub(last) < cooldown {
		return nil
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		RuleName:  rule.Name,
		SessionID: sessionID,
		Severity:  sev,
		Value:     value,
		Message:   fmt.Sprintf("[%s] %s on session %s: %s (value %.0f)", sev, rule.Name, sessionID, rule.Condition, value),
		FiredAt:   now,
		State:     StateFiring,
	}
	e.active[key] = a
	e.lastFire[key] = now

	slog.Warn("alert fired", "rule", rule.Name, "session", sessionID, "value", value, "severity", sev)
	cp := *a
	return &cp
}

// resolve must be called with mu held. It returns a copy to deliver, or nil.
func (e *Engine) resolve(key string, now time.Time) *Alert {
	a, ok := e.active[key]
	if !ok {
		return nil
	}
	resolved := now
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, key)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}

	slog.Info("alert resolved", "rule", a.RuleName, "session", a.SessionID)
	cp := *a
	return &cp
}

// Active returns copies of firing alerts plus alerts resolved within the
// past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// FiringCount returns the number of alerts currently firing.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
