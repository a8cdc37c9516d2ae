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

var emailFolders = []string{"archive", "drafts", "inbox", "sent", "spam", "trash"}

type Email struct {
	ID        string   `yaml:"id" json:"id"`
	From      string   `yaml:"from" json:"from"`
	To        []string `yaml:"to" json:"to"`
	Subject   string   `yaml:"subject" json:"subject"`
	Body      string   `yaml:"body" json:"body,omitempty"`
	Folder    string   `yaml:"folder" json:"folder"`
	Read      bool     `yaml:"read" json:"read"`
	Timestamp string   `yaml:"timestamp" json:"timestamp"`
}

type EmailApp struct {
	mu     sync.Mutex
	emails map[string]*Email
	now    func() time.Time
}

func NewEmailApp(seed []Email, now func() time.Time) *EmailApp {
	a := &EmailApp{emails: make(map[string]*Email, len(seed)), now: now}
	for i := range seed {
		e := seed[i]
		if e.Folder == "" {
			e.Folder = "inbox"
		}
		a.emails[e.ID] = &e
	}
	return a
}

func (a *EmailApp) Name() string { return "email" }

func (a *EmailApp) Operations() []world.Operation {
	idParam := world.Param{Name: "email_id", Type: world.TypeString, Required: true, Description: "The unique ID of the email."}
	return []world.Operation{
		{
			Name:        "list_emails",
			Description: "List emails in a folder, newest first. Bodies are omitted.",
			Params: []world.Param{
				{Name: "folder", Type: world.TypeString, Default: "inbox", Enum: emailFolders, Description: "Folder to list."},
				{Name: "limit", Type: world.TypeInteger, Default: 10, Description: "Maximum number of emails to return."},
				{Name: "unread_only", Type: world.TypeBoolean, Default: false, Description: "Return only unread emails."},
			},
			Handler: a.listEmails,
		},
		{
			Name:        "get_email",
			Description: "Retrieve a single email by ID, including the full body.",
			Params:      []world.Param{idParam},
			Handler:     a.getEmail,
		},
		{
			Name:        "mark_as_read",
			Description: "Mark an email as read.",
			Params:      []world.Param{idParam},
			Handler:     a.markAsRead,
		},
		{
			Name:        "search_emails",
			Description: "Search emails by keyword in subject or body (case-insensitive).",
			Params: []world.Param{
				{Name: "query", Type: world.TypeString, Required: true},
				{Name: "folder", Type: world.TypeString, Enum: emailFolders, Description: "Optional folder to restrict the search to."},
			},
			Handler: a.searchEmails,
		},
		{
			Name:        "send_email",
			Description: "Send a new email.",
			Params: []world.Param{
				{Name: "to", Type: world.TypeArray, Required: true, Description: "Recipient addresses."},
				{Name: "subject", Type: world.TypeString, Required: true},
				{Name: "body", Type: world.TypeString, Required: true},
			},
			Handler: a.sendEmail,
		},
		{
			Name:        "delete_email",
			Description: "Delete an email by moving it to the trash folder.",
			Params:      []world.Param{idParam},
			Handler:     a.deleteEmail,
		},
		{
			Name:        "move_email",
			Description: "Move an email to a different folder.",
			Params: []world.Param{
				idParam,
				{Name: "folder", Type: world.TypeString, Required: true, Enum: emailFolders},
			},
			Handler: a.moveEmail,
		},
		{
			Name:        "get_folders",
			Description: "List all folders with total and unread counts.",
			Handler:     a.getFolders,
		},
	}
}

func summary(e *Email) Email {
	s := *e
	s.Body = ""
	return s
}

func sortNewestFirst(list []Email) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp > list[j].Timestamp })
}

func (a *EmailApp) lookup(id string) (*Email, error) {
	e, ok := a.emails[id]
	if !ok {
		return nil, fmt.Errorf("Email '%s' not found.", id)
	}
	return e, nil
}

func (a *EmailApp) listEmails(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	folder := args.String("folder")
	unread := args.Bool("unread_only")
	out := []Email{}
	for _, e := range a.emails {
		if e.Folder != folder || (unread && e.Read) {
			continue
		}
		out = append(out, summary(e))
	}
	sortNewestFirst(out)
	if limit := args.Int("limit", 10); limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *EmailApp) getEmail(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.lookup(args.String("email_id"))
	if err != nil {
		return nil, err
	}
	return *e, nil
}

func (a *EmailApp) markAsRead(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.lookup(args.String("email_id"))
	if err != nil {
		return nil, err
	}
	e.Read = true
	return map[string]any{"id": e.ID, "read": true, "status": "updated"}, nil
}

func (a *EmailApp) searchEmails(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	q := strings.ToLower(args.String("query"))
	folder := args.String("folder")
	out := []Email{}
	for _, e := range a.emails {
		if folder != "" && e.Folder != folder {
			continue
		}
		if strings.Contains(strings.ToLower(e.Subject), q) || strings.Contains(strings.ToLower(e.Body), q) {
			out = append(out, summary(e))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (a *EmailApp) sendEmail(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	to := args.Strings("to")
	if len(to) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	id := uuid.NewString()[:8]
	a.emails[id] = &Email{
		ID:        id,
		From:      "me@example.com",
		To:        to,
		Subject:   args.String("subject"),
		Body:      args.String("body"),
		Folder:    "sent",
		Read:      true,
		Timestamp: a.now().UTC().Format(time.RFC3339),
	}
	return map[string]any{"id": id, "status": "sent"}, nil
}

func (a *EmailApp) deleteEmail(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.lookup(args.String("email_id"))
	if err != nil {
		return nil, err
	}
	if e.Folder == "trash" {
		return map[string]any{"id": e.ID, "status": "already in trash"}, nil
	}
	e.Folder = "trash"
	return map[string]any{"id": e.ID, "status": "moved to trash"}, nil
}

func (a *EmailApp) moveEmail(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, err := a.lookup(args.String("email_id"))
	if err != nil {
		return nil, err
	}
	from := e.Folder
	e.Folder = args.String("folder")
	return map[string]any{"id": e.ID, "from_folder": from, "to_folder": e.Folder, "status": "moved"}, nil
}

type folderCount struct {
	Folder string `json:"folder"`
	Total  int    `json:"total"`
	Unread int    `json:"unread"`
}

func (a *EmailApp) getFolders(ctx context.Context, args world.Args) (any, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts := map[string]*folderCount{}
	for _, f := range emailFolders {
		counts[f] = &folderCount{Folder: f}
	}
	for _, e := range a.emails {
		c, ok := counts[e.Folder]
		if !ok {
			c = &folderCount{Folder: e.Folder}
			counts[e.Folder] = c
		}
		c.Total++
		if !e.Read {
			c.Unread++
		}
	}
	out := make([]folderCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Folder < out[j].Folder })
	return out, nil
}
