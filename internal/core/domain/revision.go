package domain

import "time"

type RevisionEvent struct {
	ID          string       `json:"id"`
	WorkspaceID string       `json:"workspace_id"`
	Revision    uint64       `json:"revision"`
	Origin      OriginRecord `json:"origin"`
	Document    string       `json:"document"`
	OccurredAt  time.Time    `json:"occurred_at"`
}

// StateView is the read model pushed to the browser.
type StateView struct {
	Document         string            `json:"document"`
	PreviousDocument string            `json:"previous_document"`
	Instruction      string            `json:"instruction"`
	Origin           OriginRecord      `json:"origin"`
	OriginLabel      string            `json:"origin_label"`
	Theme            Theme             `json:"theme"`
	Operation        OperationStatus   `json:"operation"`
	Persistence      PersistenceStatus `json:"persistence"`
	Revision         uint64            `json:"revision"`
	HasCode          bool              `json:"has_code"`
	CanGenerate      bool              `json:"can_generate"`
	CanRefine        bool              `json:"can_refine"`
}

func NewStateView(ws Workspace, persistence PersistenceStatus) StateView {
	if persistence == "" {
		persistence = PersistenceIdle
	}
	return StateView{
		Document:         ws.Document,
		PreviousDocument: ws.PriorDocument,
		Instruction:      ws.Instruction,
		Origin:           EncodeOrigin(ws.Origin),
		OriginLabel:      DescribeOrigin(ws.Origin),
		Theme:            ws.Theme,
		Operation:        ws.Operation,
		Persistence:      persistence,
		Revision:         ws.Revision,
		HasCode:          ws.HasCode(),
		CanGenerate:      ws.CanGenerate(),
		CanRefine:        ws.CanRefine(),
	}
}

type WorkspaceEventType string

const (
	EventState       WorkspaceEventType = "state"
	EventPreview     WorkspaceEventType = "preview"
	EventPersistence WorkspaceEventType = "persistence"
)

type WorkspaceEvent struct {
	Type  WorkspaceEventType `json:"type"`
	State StateView          `json:"state"`
}
