package reminders

import (
	"bytes"
	"context"
	"sort"
	"text/template"
	"time"

	"github.com/kdlbs/scribe-mcp/internal/storage"
)

// Engine selects and records reminders for each tool invocation.
type Engine struct {
	cache    *Cache
	store    *storage.Store
	settings Settings
	defs     []Definition
}

// NewEngine constructs an Engine with the built-in catalog, hydrating its
// cooldown cache from disk.
func NewEngine(store *storage.Store, settings Settings, cachePath string) (*Engine, error) {
	cache := NewCache(cachePath)
	if err := cache.Load(); err != nil {
		return nil, err
	}
	return &Engine{cache: cache, store: store, settings: settings, defs: Catalog(settings)}, nil
}

type candidate struct {
	def  Definition
	hash string
	vars map[string]string
}

// Evaluate runs every catalog definition against rc, applies the cooldown
// and teaching-cap rules, selects and orders the survivors, records each
// shown reminder, and returns the rendered messages.
func (e *Engine) Evaluate(ctx context.Context, rc Context) ([]Shown, error) {
	now := time.Now().UTC()
	timeVars := map[string]string{
		"now_utc":     now.Format("2006-01-02 15:04:05"),
		"now_iso_utc": now.Format(time.RFC3339),
		"date_utc":    now.Format("2006-01-02"),
		"time_utc":    now.Format("15:04:05"),
	}

	var candidates []candidate
	for _, def := range e.defs {
		vars, ok := def.Applicable(rc)
		if !ok {
			continue
		}
		hash := Hash(rc.ProjectRoot, rc.AgentID, rc.ToolName, def.Key, rc.SessionID, e.settings.SessionAware)
		if !e.shouldShow(def, rc, hash, now) {
			continue
		}
		merged := mergeVars(vars, rc.Variables, timeVars)
		candidates = append(candidates, candidate{def: def, hash: hash, vars: merged})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].def, candidates[j].def
		if levelPriority[a.Level] != levelPriority[b.Level] {
			return levelPriority[a.Level] > levelPriority[b.Level]
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return categoryWeight[a.Category] > categoryWeight[b.Category]
	})

	max := e.settings.MaxPerResponse
	if max <= 0 {
		max = 5
	}
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	shown := make([]Shown, 0, len(candidates))
	for _, c := range candidates {
		msg, err := renderTemplate(c.def.Template, c.vars)
		if err != nil {
			continue
		}
		e.cache.RecordShown(c.hash, rc.ProjectRoot, rc.AgentID, now, rc.SessionID, c.def.Category)
		if rc.SessionID != "" {
			if _, err := e.store.RecordReminderShown(ctx, &storage.ReminderHistoryEntry{
				SessionID:       rc.SessionID,
				ReminderHash:    c.hash,
				ProjectRoot:     rc.ProjectRoot,
				AgentID:         rc.AgentID,
				ToolName:        rc.ToolName,
				ReminderKey:     c.def.Key,
				ShownAt:         now,
				OperationStatus: string(rc.OperationStatus),
			}); err != nil {
				return nil, err
			}
		}
		shown = append(shown, Shown{Key: c.def.Key, Level: c.def.Level, Category: c.def.Category, Message: msg})
	}

	return shown, e.cache.Save()
}

func (e *Engine) shouldShow(def Definition, rc Context, hash string, now time.Time) bool {
	if rc.OperationStatus == OpFailure {
		return true
	}
	if def.Category == CategoryTeaching && e.cache.TeachingCount(rc.SessionID, CategoryTeaching) >= e.settings.TeachingCap {
		return false
	}
	if last, ok := e.cache.LastShown(hash); ok {
		if now.Sub(last) < time.Duration(def.CooldownMin)*time.Minute {
			return false
		}
	}
	return true
}

// ResetCooldowns clears cached cooldown state scoped to (projectRoot,
// agentID) and persists the cache.
func (e *Engine) ResetCooldowns(projectRoot, agentID string) (int, error) {
	cleared := e.cache.ResetCooldowns(projectRoot, agentID)
	return cleared, e.cache.Save()
}

func mergeVars(maps ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func renderTemplate(tpl string, vars map[string]string) (string, error) {
	t, err := template.New("reminder").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", err
	}
	return buf.String(), nil
}
