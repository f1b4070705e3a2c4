package domain

import "fmt"

type OriginKind string

const (
	OriginInstruction OriginKind = "prompt"
	OriginUpload      OriginKind = "upload"
	OriginRepository  OriginKind = "github"
	OriginCleared     OriginKind = "cleared"
	OriginInitial     OriginKind = "initial"
)

// Origin records how the current document was produced. The set of
// implementations is closed: FromInstruction, FromUpload, FromRepository,
// Cleared and Initial.
type Origin interface {
	Kind() OriginKind
	sealedOrigin()
}

type FromInstruction struct {
	Instruction string
}

type FromUpload struct {
	Filename string
}

type FromRepository struct {
	Path string
}

type Cleared struct{}

type Initial struct{}

func (FromInstruction) Kind() OriginKind { return OriginInstruction }
func (FromUpload) Kind() OriginKind      { return OriginUpload }
func (FromRepository) Kind() OriginKind  { return OriginRepository }
func (Cleared) Kind() OriginKind         { return OriginCleared }
func (Initial) Kind() OriginKind         { return OriginInitial }

func (FromInstruction) sealedOrigin() {}
func (FromUpload) sealedOrigin()      {}
func (FromRepository) sealedOrigin()  {}
func (Cleared) sealedOrigin()         {}
func (Initial) sealedOrigin()         {}

// DescribeOrigin renders the origin for display next to the instruction box.
func DescribeOrigin(origin Origin) string {
	switch o := origin.(type) {
	case FromInstruction:
		return fmt.Sprintf("From prompt: %q", o.Instruction)
	case FromUpload:
		return "From uploaded file: " + o.Filename
	case FromRepository:
		return "From GitHub: " + o.Path
	case Cleared:
		return "Project cleared."
	case Initial, nil:
		return "Welcome! Enter a prompt to start."
	default:
		panic(fmt.Sprintf("domain: unhandled origin %T", origin))
	}
}

// OriginRecord is the persisted and wire form of an Origin.
type OriginRecord struct {
	Type  OriginKind `json:"type"`
	Value string     `json:"value"`
}

func EncodeOrigin(origin Origin) OriginRecord {
	switch o := origin.(type) {
	case FromInstruction:
		return OriginRecord{Type: OriginInstruction, Value: o.Instruction}
	case FromUpload:
		return OriginRecord{Type: OriginUpload, Value: o.Filename}
	case FromRepository:
		return OriginRecord{Type: OriginRepository, Value: o.Path}
	case Cleared:
		return OriginRecord{Type: OriginCleared}
	case Initial, nil:
		return OriginRecord{Type: OriginInitial, Value: "Welcome"}
	default:
		panic(fmt.Sprintf("domain: unhandled origin %T", origin))
	}
}

func DecodeOrigin(record OriginRecord) (Origin, error) {
	switch record.Type {
	case OriginInstruction:
		return FromInstruction{Instruction: record.Value}, nil
	case OriginUpload:
		return FromUpload{Filename: record.Value}, nil
	case OriginRepository:
		return FromRepository{Path: record.Value}, nil
	case OriginCleared:
		return Cleared{}, nil
	case OriginInitial:
		return Initial{}, nil
	default:
		return nil, WrapError(ErrInvalidInput, "decode origin", fmt.Errorf("unknown type %q", record.Type))
	}
}
