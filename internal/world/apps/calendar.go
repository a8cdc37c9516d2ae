package apps

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalnine/worldbench/internal/world"
)

type Event struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Start       string   `yaml:"start" json:"start"`
	End         string   `yaml:"end" json:"end"`
	Attendees   []string `yaml:"attendees" json:"attendees"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Calendar    string   `yaml:"calendar" json:"calendar"`
	Status      string   `yaml:"status" json:"status"`
}

type CalendarApp struct {
	mu     sync.Mutex
	events map[string]*Event
}

func NewCalendarApp(seed []Event) *CalendarApp {
	a := &CalendarApp{events: make(map[string]*Event, len(seed))}
	for i := range seed {
		ev := seed[i]
		if ev.Calendar == "" {
			ev.Calendar = "work"
		}
		if ev.Status == "" {
			ev.Status = "confirmed"
		}
		a.events[ev.ID] = &ev
	}
	return a
}

func (a *CalendarApp) Name() string { return "calendar" }

func (a *CalendarApp) Operations() []world.Operation {
	idParam := world.Param{Name: "event_id", Type: world.TypeString, Required: true}
	return []world.Operation{
		{
			Name:        "list_events",
			Description: "List events sorted by start time, optionally filtered by calendar or start-time range.",
			Params: []world.Param{
				{Name: "calendar", Type: world.TypeString, Description: "work or personal; omit for all."},
				{Name: "start_date", Type: world.TypeString, Description: "Only events starting at or after this ISO time."},
				{Name: "end_date", Type: world.TypeString, Description: "Only events starting before this ISO time."},
			},
			Handler: a.listEvents,
		},
		{
			Name:        "get_event",
			Description: "Get full details of an event including its description.",
			Params:      []world.Param{idParam},
			Handler:     a.getEvent,
		},
		{
			Name:        "create_event",
			Description: "Create a new calendar event.",
			Params: []world.Param{
				{Name: "title", Type: world.TypeString, Required: true},
				{Name: "start", Type: world.TypeString, Required: true, Description: "ISO datetime."},
				{Name: "end", Type: world.TypeString, Required: true, Description: "ISO datetime."},
				{Name: "attendees", Type: world.TypeArray},
				{Name: "description", Type: world.TypeString},
				{Name: "calendar", Type: world.TypeString, Default: "work", Enum: []string{"work", "personal"}},
			},
			Handler: a.createEvent,
		},
		{
			Name:        "update_event",
			Description: "Update fields on an existing event. Omitted fields are unchanged.",
			Params: []world.Param{
				idParam,
				{Name: "title", Type: world.TypeString},
				{Name: "start", Type: world.TypeString},
				{Name: "end", Type: world.TypeString},
				{Name: "description", Type: world.TypeString},
				{Name: "status", Type: world.TypeString, Enum: []string{"confirmed", "tentative", "cancelled"}},
			},
			Handler: a.updateEvent,
		},
		{
			Name:        "delete_event",
			Description: "Permanently delete an event.",
			Params:      []world.Param{idParam},
			Handler:     a.deleteEvent,
		},
		{
			Name:        "search_events",
			Description: "Search events by keyword in title or description.",
			Params:      []world.Param{{Name: "query", Type: world.TypeString, Required: true}},
			Handler:     a.searchEvents,
		},
		{
			Name:        "find_free_slots",
			Description: "Find free slots between 09:00 and 18:00 on a day.",
			Params: []world.Param{
				{Name: "date", Type: world.TypeString, Required: true, Description: "YYYY-MM-DD."},
				{Name: "duration_minutes", Type: world.TypeInteger, Default: 60},
			},
			Handler: a.findFreeSlots,
		},
	}
}

func (a *CalendarApp) sorted(keep func(*Event) bool) []Event {
	out := []Event{}
	for _, ev := range a.events {
		if keep(ev) {
			s := *ev
			s.Description = ""
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].ID < out[j].ID
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func (a *CalendarApp) listEvents(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cal, from, to := args.String("calendar"), args.String("start_date"), args.String("end_date")
	return a.sorted(func(ev *Event) bool {
		if cal != "" && ev.Calendar != cal {
			return false
		}
		if from != "" && ev.Start < from {
			return false
		}
		if to != "" && ev.Start >= to {
			return false
		}
		return true
	}), nil
}

func (a *CalendarApp) lookup(id string) (*Event, error) {
	ev, ok := a.events[id]
	if !ok {
		return nil, fmt.Errorf("Event '%s' not found.", id)
	}
	return ev, nil
}

func (a *CalendarApp) getEvent(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev, err := a.lookup(args.String("event_id"))
	if err != nil {
		return nil, err
	}
	return *ev, nil
}

func (a *CalendarApp) createEvent(ctx context.Context, args world.Args) (any, error) {
	start, err := parseTime(args.String("start"))
	if err != nil {
		return nil, err
	}
	end, err := parseTime(args.String("end"))
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, fmt.Errorf("event end must be after start")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	ev := &Event{
		ID:          uuid.NewString()[:8],
		Title:       args.String("title"),
		Start:       args.String("start"),
		End:         args.String("end"),
		Attendees:   args.Strings("attendees"),
		Description: args.String("description"),
		Calendar:    args.String("calendar"),
		Status:      "confirmed",
	}
	if ev.Attendees == nil {
		ev.Attendees = []string{}
	}
	a.events[ev.ID] = ev
	return *ev, nil
}

func (a *CalendarApp) updateEvent(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev, err := a.lookup(args.String("event_id"))
	if err != nil {
		return nil, err
	}
	for name, field := range map[string]*string{
		"title":       &ev.Title,
		"start":       &ev.Start,
		"end":         &ev.End,
		"description": &ev.Description,
		"status":      &ev.Status,
	} {
		if args.Has(name) {
			*field = args.String(name)
		}
	}
	return *ev, nil
}

func (a *CalendarApp) deleteEvent(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ev, err := a.lookup(args.String("event_id"))
	if err != nil {
		return nil, err
	}
	delete(a.events, ev.ID)
	return map[string]any{"id": ev.ID, "title": ev.Title, "status": "deleted"}, nil
}

func (a *CalendarApp) searchEvents(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := strings.ToLower(args.String("query"))
	return a.sorted(func(ev *Event) bool {
		return strings.Contains(strings.ToLower(ev.Title), q) || strings.Contains(strings.ToLower(ev.Description), q)
	}), nil
}

type slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (a *CalendarApp) findFreeSlots(ctx context.Context, args world.Args) (any, error) {
	day, err := time.Parse("2006-01-02", args.String("date"))
	if err != nil {
		return nil, fmt.Errorf("date must be YYYY-MM-DD")
	}
	need := time.Duration(args.Int("duration_minutes", 60)) * time.Minute
	dayStart := day.Add(9 * time.Hour)
	dayEnd := day.Add(18 * time.Hour)

	a.mu.Lock()
	type span struct{ start, end time.Time }
	var busy []span
	for _, ev := range a.events {
		if ev.Status == "cancelled" {
			continue
		}
		s, err1 := parseTime(ev.Start)
		e, err2 := parseTime(ev.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if e.After(dayStart) && s.Before(dayEnd) {
			busy = append(busy, span{s, e})
		}
	}
	a.mu.Unlock()
	sort.Slice(busy, func(i, j int) bool { return busy[i].start.Before(busy[j].start) })

	slots := []slot{}
	cursor := dayStart
	for _, b := range busy {
		if b.start.Sub(cursor) >= need {
			slots = append(slots, slot{cursor.Format(time.RFC3339), b.start.Format(time.RFC3339)})
		}
		if b.end.After(cursor) {
			cursor = b.end
		}
	}
	if dayEnd.Sub(cursor) >= need {
		slots = append(slots, slot{cursor.Format(time.RFC3339), dayEnd.Format(time.RFC3339)})
	}
	return slots, nil
}

// parseTime accepts RFC 3339 and the zone-less ISO form agents tend to send.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q, expected ISO 8601", s)
}
