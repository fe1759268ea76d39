package correlation

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pedropauloai/claude-agent-monitor/internal/similarity"
	"github.com/pedropauloai/claude-agent-monitor/internal/store"
)

// Signal weights for findBestMatch. The sum can exceed 1.0 before clamping.
const (
	weightTags     = 0.5 // file path segments vs task tag set
	weightFilename = 0.3 // file basename vs task title
	weightKeywords = 0.4 // event free text vs title/description

	descriptionDiscount = 0.8 // description matches count at 0.8x of title matches
	keywordCap          = 500 // free-text candidates are truncated near this length
)

// eventPayload is the known free-text shape of tool metadata. Unrecognized
// metadata decodes to the zero value and simply contributes no keywords.
type eventPayload struct {
	Subject string `json:"subject"`
	Command string `json:"command"`
	Content string `json:"content"`
}

func decodePayload(metadata []byte) eventPayload {
	var p eventPayload
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &p)
	}
	return p
}

// findBestMatch scans every open task in every project and returns the
// highest-scoring task at or above the confidence threshold, or nil when
// nothing qualifies.
func (e *Engine) findBestMatch(ctx context.Context, ev store.Event) (*store.Task, float64, string, error) {
	tasks, err := e.Store.ListOpenTasks(ctx)
	if err != nil {
		return nil, 0, "", err
	}
	payload := decodePayload(ev.Metadata)

	var best *store.Task
	bestScore := 0.0
	bestReason := ""
	for i := range tasks {
		score, reason := scoreTask(ev, payload, tasks[i])
		if score > bestScore {
			best = &tasks[i]
			bestScore = score
			bestReason = reason
		}
	}
	if best == nil || bestScore < e.Threshold {
		return nil, 0, "", nil
	}
	return best, bestScore, bestReason, nil
}

// scoreTask combines the weak signals linking an event to a task into one
// confidence score, and assembles the human-readable reason naming each
// signal's percentage contribution.
func scoreTask(ev store.Event, payload eventPayload, t store.Task) (float64, string) {
	total := 0.0
	var parts []string

	if ev.FilePath != nil && len(t.Tags) > 0 {
		segments := pathSegments(*ev.FilePath)
		matched := 0
		for _, tag := range t.Tags {
			norm := similarity.Normalize(tag)
			if norm == "" {
				continue
			}
			for _, seg := range segments {
				if strings.Contains(seg, norm) {
					matched++
					break
				}
			}
		}
		if matched > 0 {
			c := float64(matched) / float64(len(t.Tags)) * weightTags
			total += c
			parts = append(parts, fmt.Sprintf("file tags %.0f%%", c*100))
		}
	}

	if ev.FilePath != nil {
		if base := baseName(*ev.FilePath); base != "" {
			if c := similarity.CombinedSimilarity(base, t.Title) * weightFilename; c > 0 {
				total += c
				parts = append(parts, fmt.Sprintf("filename %.0f%%", c*100))
			}
		}
	}

	if candidates := keywordCandidates(ev, payload); len(candidates) > 0 {
		best := 0.0
		for _, kw := range candidates {
			s := similarity.CombinedSimilarity(kw, t.Title)
			if t.Description != "" {
				if d := descriptionDiscount * similarity.CombinedSimilarity(kw, t.Description); d > s {
					s = d
				}
			}
			if s > best {
				best = s
			}
		}
		if c := best * weightKeywords; c > 0 {
			total += c
			parts = append(parts, fmt.Sprintf("keywords %.0f%%", c*100))
		}
	}

	if ev.ToolName != nil {
		if bonus := categoryBonus(Categorize(*ev.ToolName), t.Title); bonus > 0 {
			total += bonus
			parts = append(parts, fmt.Sprintf("tool category %.0f%%", bonus*100))
		}
	}

	if total > 1 {
		total = 1
	}
	return total, strings.Join(parts, ", ")
}

// pathSegments normalizes a file path into lowercase segments split on
// path separators, extensions stripped.
func pathSegments(path string) []string {
	segs := strings.FieldsFunc(strings.ToLower(path), func(r rune) bool {
		return r == '/' || r == '\\'
	})
	out := segs[:0]
	for _, s := range segs {
		s = strings.TrimSuffix(s, filepath.Ext(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func baseName(path string) string {
	base := filepath.Base(strings.ReplaceAll(path, "\\", "/"))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// keywordCandidates gathers the event's free-text fields, each capped near
// 500 characters so huge tool outputs cannot dominate scoring time.
func keywordCandidates(ev store.Event, payload eventPayload) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if len(s) > keywordCap {
			s = s[:keywordCap]
		}
		out = append(out, s)
	}
	add(payload.Subject)
	add(payload.Command)
	add(payload.Content)
	if ev.Input != nil {
		add(*ev.Input)
	}
	return out
}
