package manager

import (
	"fmt"
	"strings"

	"github.com/websync-digital/sunlit-blue-spark/internal/domain"
)

// Layout selects how the admin page is arranged.
type Layout string

const (
	LayoutSimple  Layout = "simple"
	LayoutSidebar Layout = "sidebar"
)

// ParseLayout parses an ADMIN_LAYOUT value.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutSimple, LayoutSidebar:
		return l, nil
	case "":
		return LayoutSidebar, nil
	default:
		return "", fmt.Errorf("unknown admin layout %q", s)
	}
}

// LoadState tracks the initial catalog load.
type LoadState int

const (
	LoadIdle LoadState = iota
	LoadLoading
	LoadReady
	LoadFailed
)

var loadStateNames = [...]string{"idle", "loading", "ready", "failed"}

func (s LoadState) String() string {
	if int(s) < len(loadStateNames) {
		return loadStateNames[s]
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

func (s LoadState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *LoadState) UnmarshalText(b []byte) error {
	for i, name := range loadStateNames {
		if name == string(b) {
			*s = LoadState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown load state %q", b)
}

// WorkflowState is the state of the add/edit form.
type WorkflowState int

const (
	StateClosed WorkflowState = iota
	StateOpen
	StateSubmitting
)

func (s WorkflowState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("WorkflowState(%d)", int(s))
	}
}

func (s WorkflowState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *WorkflowState) UnmarshalText(b []byte) error {
	for _, st := range []WorkflowState{StateClosed, StateOpen, StateSubmitting} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown workflow state %q", b)
}

// Mode tells the add form from the edit form.
type Mode string

const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

func (m Mode) op() string {
	if m == ModeAdd {
		return "create"
	}
	return "update"
}

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a transient message for the admin.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Modal is a snapshot of the open form.
type Modal struct {
	Token      string              `json:"token"`
	Mode       Mode                `json:"mode"`
	ProductID  string              `json:"product_id,omitempty"`
	State      WorkflowState       `json:"state"`
	Draft      domain.ProductDraft `json:"draft"`
	PreviewURL string              `json:"preview_url,omitempty"`
	FileName   string              `json:"file_name,omitempty"`
	Error      string              `json:"error,omitempty"`
}

func (w *workflow) view() Modal {
	m := Modal{
		Token:     w.token,
		Mode:      w.mode,
		ProductID: w.productID,
		State:     w.state,
		Draft:     w.draft,
		Error:     w.lastError,
	}
	if w.image != nil {
		m.PreviewURL = PreviewPath + w.image.token
		m.FileName = w.image.name
	}
	return m
}

// ImageURL is what the form shows: the preview of a selected file, or
// the draft's stored URL.
func (m Modal) ImageURL() string {
	if m.PreviewURL != "" {
		return m.PreviewURL
	}
	return m.Draft.ImageURL
}

// Confirmation is a delete awaiting a yes/no answer.
type Confirmation struct {
	ProductID string `json:"product_id"`
	Prompt    string `json:"prompt"`
}

// DraftPatch changes some fields of the open form. Nil fields are kept.
type DraftPatch struct {
	Name             *string `json:"name"`
	ShortDescription *string `json:"short_description"`
	FullDescription  *string `json:"full_description"`
	PriceMinor       *int64  `json:"price_minor"`
	ImageURL         *string `json:"image_url"`
}

func (p DraftPatch) apply(d *domain.ProductDraft) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.ShortDescription != nil {
		d.ShortDescription = *p.ShortDescription
	}
	if p.FullDescription != nil {
		d.FullDescription = *p.FullDescription
	}
	if p.PriceMinor != nil {
		d.PriceMinor = *p.PriceMinor
	}
	if p.ImageURL != nil {
		d.ImageURL = *p.ImageURL
	}
}

// View is everything the admin page renders.
type View struct {
	Layout        Layout           `json:"layout"`
	LoadState     LoadState        `json:"load_state"`
	Error         string           `json:"error,omitempty"`
	Query         string           `json:"query"`
	Products      []domain.Product `json:"products"`
	Stats         domain.Stats     `json:"stats"`
	Modal         *Modal           `json:"modal,omitempty"`
	PendingDelete *Confirmation    `json:"pending_delete,omitempty"`
}
