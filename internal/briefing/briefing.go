// Package briefing assembles the compact textual context that rides along
// with each outbound chat message: open tasks, checklists and recent
// journal entries, each under a labeled section.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"TaskChat/internal/store"
)

// Section caps keep the context small enough for a query parameter.
const (
	MaxTasks      = 15
	MaxChecklists = 10
	MaxJournal    = 30
)

// Selection controls which categories are included and, optionally, which
// specific items. Explicit IDs take priority over the default head-of-list
// pick.
type Selection struct {
	IncludeTasks      bool
	IncludeChecklists bool
	IncludeJournal    bool
	TaskIDs           []string
	ChecklistIDs      []string
}

// DefaultSelection includes every category with no explicit picks.
func DefaultSelection() Selection {
	return Selection{
		IncludeTasks:      true,
		IncludeChecklists: true,
		IncludeJournal:    true,
	}
}

// Source supplies the planner data the briefing is built from.
type Source interface {
	Tasks(ctx context.Context) ([]store.Task, error)
	Checklists(ctx context.Context) ([]store.Checklist, error)
	Journal(ctx context.Context) ([]store.JournalEntry, error)
}

// Builder renders briefings from a store source.
type Builder struct {
	src    Source
	logger *slog.Logger
}

// NewBuilder creates a Builder reading from src.
func NewBuilder(src Source, logger *slog.Logger) *Builder {
	return &Builder{src: src, logger: logger}
}

// Build assembles the labeled context block. A category whose fetch fails is
// omitted rather than failing the message send; an empty result is the empty
// string.
func (b *Builder) Build(ctx context.Context, sel Selection) string {
	var lines []string

	if sel.IncludeTasks {
		tasks, err := b.src.Tasks(ctx)
		if err != nil {
			b.logger.Warn("briefing: tasks unavailable", "error", err)
		} else if picked := pickTasks(tasks, sel.TaskIDs); len(picked) > 0 {
			lines = append(lines, "Tasks:")
			for _, task := range picked {
				lines = append(lines, renderTask(task))
			}
		}
	}

	if sel.IncludeChecklists {
		checklists, err := b.src.Checklists(ctx)
		if err != nil {
			b.logger.Warn("briefing: checklists unavailable", "error", err)
		} else if picked := pickChecklists(checklists, sel.ChecklistIDs); len(picked) > 0 {
			lines = append(lines, "Checklists:")
			for _, list := range picked {
				lines = append(lines, renderChecklist(list))
			}
		}
	}

	if sel.IncludeJournal {
		entries, err := b.src.Journal(ctx)
		if err != nil {
			b.logger.Warn("briefing: journal unavailable", "error", err)
		} else if len(entries) > 0 {
			if len(entries) > MaxJournal {
				entries = entries[:MaxJournal]
			}
			lines = append(lines, "Journal (prev 30 days):")
			for _, entry := range entries {
				lines = append(lines, fmt.Sprintf("- %s: %s", entry.Date.Format("2006-01-02"), entry.Text))
			}
		}
	}

	return strings.Join(lines, "\n")
}

// pickTasks applies the explicit selection in its given order, falling back
// to the head of the list, capped either way.
func pickTasks(tasks []store.Task, ids []string) []store.Task {
	if len(ids) == 0 {
		if len(tasks) > MaxTasks {
			tasks = tasks[:MaxTasks]
		}
		return tasks
	}

	byID := make(map[string]store.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	picked := make([]store.Task, 0, len(ids))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			picked = append(picked, t)
		}
		if len(picked) == MaxTasks {
			break
		}
	}
	return picked
}

func pickChecklists(lists []store.Checklist, ids []string) []store.Checklist {
	if len(ids) == 0 {
		if len(lists) > MaxChecklists {
			lists = lists[:MaxChecklists]
		}
		return lists
	}

	byID := make(map[string]store.Checklist, len(lists))
	for _, l := range lists {
		byID[l.ID] = l
	}
	picked := make([]store.Checklist, 0, len(ids))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			picked = append(picked, l)
		}
		if len(picked) == MaxChecklists {
			break
		}
	}
	return picked
}

func renderTask(t store.Task) string {
	box := "[ ]"
	if t.Done {
		box = "[x]"
	}
	if t.Due != nil {
		return fmt.Sprintf("- %s %s (due %s)", box, t.Title, t.Due.Format("2006-01-02"))
	}
	return fmt.Sprintf("- %s %s", box, t.Title)
}

func renderChecklist(l store.Checklist) string {
	done := 0
	items := make([]string, len(l.Items))
	for i, item := range l.Items {
		box := "[ ]"
		if item.Completed {
			box = "[x]"
			done++
		}
		items[i] = fmt.Sprintf("%s %s", item.Text, box)
	}
	line := fmt.Sprintf("- %s (%d/%d done)", l.Name, done, len(l.Items))
	if len(items) > 0 {
		line += ": " + strings.Join(items, ", ")
	}
	return line
}
