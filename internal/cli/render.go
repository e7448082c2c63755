package cli

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/cadence/internal/beats"
	"github.com/roach88/cadence/internal/history"
	"github.com/roach88/cadence/internal/measures"
	"github.com/roach88/cadence/internal/txn"
	"github.com/roach88/cadence/internal/value"
)

// Result types below marshal to JSON as their underlying data and render
// as text through String.

type beatList []beats.Beat

func (l beatList) String() string {
	if len(l) == 0 {
		return "No beats."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-6s %-10s %-8s %s\n", "POS", "ID", "DURATION", "MEASURE", "NOTES")
	for _, beat := range l {
		fmt.Fprintf(&b, "%-6d %-6d %-10g %-8s %s\n",
			beat.Position, beat.ID, beat.Duration, yesNo(beat.IncludeInMeasure), orDash(beat.Notes))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type measureList []measures.Measure

func (l measureList) String() string {
	if len(l) == 0 {
		return "No measures."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %-6s %s\n", "ID", "START", "MARK", "NOTES")
	for _, m := range l {
		fmt.Fprintf(&b, "%-6d %-10d %-6s %s\n", m.ID, m.StartBeat, orDash(m.RehearsalMark), orDash(m.Notes))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type outcomeResult txn.Outcome

func (o outcomeResult) String() string {
	if o.Group == 0 {
		return fmt.Sprintf("Nothing to %s.", o.Direction)
	}
	s := fmt.Sprintf("%s %q (group %d)", capitalize(string(o.Direction)), o.Label, o.Group)
	if o.TableName != "" {
		s += fmt.Sprintf(": %s %v", o.TableName, o.AffectedIDs)
	}
	return s
}

type statsResult txn.Stats

func (s statsResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Undo groups: %d", s.UndoGroups)
	if s.UndoLabel != "" {
		fmt.Fprintf(&b, " (next: %q)", s.UndoLabel)
	}
	fmt.Fprintf(&b, "\nRedo groups: %d", s.RedoGroups)
	if s.RedoLabel != "" {
		fmt.Fprintf(&b, " (next: %q)", s.RedoLabel)
	}
	limit := "unlimited"
	if s.Limit > 0 {
		limit = fmt.Sprint(s.Limit)
	}
	fmt.Fprintf(&b, "\nLimit: %s", limit)
	if s.Halted {
		b.WriteString("\nHistory is halted; run \"cadence history clear\" to resume.")
	}
	return b.String()
}

type groupView struct {
	Group   int64        `json:"group"`
	Label   string       `json:"label"`
	Records []recordView `json:"records"`
}

type recordView struct {
	Order     int64        `json:"order"`
	Action    string       `json:"action"`
	TableName string       `json:"table_name"`
	Payload   value.Object `json:"payload"`
}

type groupList []groupView

func newGroupList(groups []history.Group) groupList {
	out := make(groupList, len(groups))
	for i, g := range groups {
		view := groupView{Group: g.ID, Label: g.Label, Records: make([]recordView, len(g.Records))}
		for j, r := range g.Records {
			view.Records[j] = recordView{
				Order:     r.Order,
				Action:    string(r.Action.Kind),
				TableName: r.Action.Table,
				Payload:   r.Action.Payload,
			}
		}
		out[i] = view
	}
	return out
}

func (l groupList) String() string {
	if len(l) == 0 {
		return "No history."
	}
	var b strings.Builder
	for _, g := range l {
		fmt.Fprintf(&b, "Group %d %q\n", g.Group, g.Label)
		for _, r := range g.Records {
			id, _ := r.Payload.Int("id")
			fmt.Fprintf(&b, "  %d. %s %s id=%d\n", r.Order, r.Action, r.TableName, id)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type statusMessage struct {
	Message string `json:"message"`
}

func (m statusMessage) String() string { return m.Message }

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func capitalize(s string) string {
	return cases.Title(language.English).String(s)
}
