package domain

import (
	"fmt"
	"strings"
	"time"
)

type OperationStatus string

const (
	OperationIdle       OperationStatus = "idle"
	OperationGenerating OperationStatus = "generating"
	OperationRefining   OperationStatus = "refining"
	OperationCloning    OperationStatus = "cloning"
)

type PersistenceStatus string

const (
	PersistenceIdle   PersistenceStatus = "idle"
	PersistenceSaving PersistenceStatus = "saving"
	PersistenceSaved  PersistenceStatus = "saved"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

func ParseTheme(raw string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse theme", fmt.Errorf("unknown theme %q", raw))
	}
}

const WelcomeDocument = "<!-- Welcome to AI DevGen Studio! Enter a prompt on the left and click Generate. -->"

// Workspace is an immutable snapshot of the editing session. Every
// transition returns a new value; Document and Origin only ever change
// together through Replace, Accept and Clear.
type Workspace struct {
	Document      string
	PriorDocument string
	Instruction   string
	Origin        Origin
	Theme         Theme
	Operation     OperationStatus
	Revision      uint64
	UpdatedAt     time.Time
}

func NewWorkspace() Workspace {
	return Workspace{
		Document:  WelcomeDocument,
		Origin:    Initial{},
		Theme:     ThemeDark,
		Operation: OperationIdle,
	}
}

func (w Workspace) HasCode() bool {
	return w.Document != ""
}

func (w Workspace) Busy() bool {
	return w.Operation != "" && w.Operation != OperationIdle
}

func (w Workspace) CanGenerate() bool {
	return !w.Busy() && strings.TrimSpace(w.Instruction) != ""
}

func (w Workspace) CanRefine() bool {
	return w.CanGenerate() && w.HasCode()
}

// Begin marks op as in flight. It fails with ErrBusy while another
// operation has not settled.
func (w Workspace) Begin(op OperationStatus) (Workspace, error) {
	if err := w.RequireIdle(); err != nil {
		return w, err
	}
	w.Operation = op
	return w, nil
}

func (w Workspace) RequireIdle() error {
	if w.Busy() {
		return NewUserError(ErrBusy, fmt.Sprintf("Please wait: %s is still in progress.", w.Operation), nil)
	}
	return nil
}

func (w Workspace) Settle() Workspace {
	w.Operation = OperationIdle
	return w
}

// Replace snapshots the current document into PriorDocument and installs
// document together with origin.
func (w Workspace) Replace(document string, origin Origin, now time.Time) Workspace {
	w.PriorDocument = w.Document
	w.Document = document
	w.Origin = origin
	w.Revision++
	w.UpdatedAt = now
	return w
}

// Accept applies a successful generate or refine result.
func (w Workspace) Accept(document, instruction string, now time.Time) Workspace {
	w = w.Replace(document, FromInstruction{Instruction: instruction}, now)
	w.Instruction = ""
	return w
}

func (w Workspace) Clear(now time.Time) Workspace {
	w = w.Replace("", Cleared{}, now)
	w.Instruction = ""
	return w
}

// Edit sets the document verbatim, as typed in the editor. Origin and
// PriorDocument are left alone.
func (w Workspace) Edit(document string, now time.Time) Workspace {
	if document == w.Document {
		return w
	}
	w.Document = document
	w.Revision++
	w.UpdatedAt = now
	return w
}

// Reformat applies a cosmetic rewrite in place without taking a snapshot.
func (w Workspace) Reformat(format func(string) string, now time.Time) Workspace {
	return w.Edit(format(w.Document), now)
}

func (w Workspace) WithInstruction(text string) Workspace {
	w.Instruction = text
	return w
}

func (w Workspace) WithTheme(theme Theme) Workspace {
	w.Theme = theme
	return w
}
