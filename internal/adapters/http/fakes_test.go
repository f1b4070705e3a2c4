package httpadapter

import (
	"context"
	"sync"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
)

type workspaceServiceFake struct {
	mu    sync.Mutex
	view  domain.StateView
	err   error
	calls []string
	args  []string

	events chan domain.WorkspaceEvent
}

func newWorkspaceServiceFake() *workspaceServiceFake {
	return &workspaceServiceFake{
		view: domain.NewStateView(domain.NewWorkspace(), domain.PersistenceIdle),
	}
}

func (f *workspaceServiceFake) record(call string, args ...string) (domain.StateView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.args = append(f.args, args...)
	return f.view, f.err
}

func (f *workspaceServiceFake) lastCall() (string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return "", nil
	}
	return f.calls[len(f.calls)-1], append([]string(nil), f.args...)
}

func (f *workspaceServiceFake) Snapshot() domain.StateView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *workspaceServiceFake) Generate(_ context.Context, instruction string) (domain.StateView, error) {
	return f.record("generate", instruction)
}

func (f *workspaceServiceFake) Refine(_ context.Context, instruction string) (domain.StateView, error) {
	return f.record("refine", instruction)
}

func (f *workspaceServiceFake) ImportFile(_ context.Context, filename, content string) (domain.StateView, error) {
	return f.record("import_file", filename, content)
}

func (f *workspaceServiceFake) ImportRemote(_ context.Context, repositoryURL string) (domain.StateView, error) {
	return f.record("import_remote", repositoryURL)
}

func (f *workspaceServiceFake) Clear(context.Context) (domain.StateView, error) {
	return f.record("clear")
}

func (f *workspaceServiceFake) Edit(_ context.Context, content string) (domain.StateView, error) {
	return f.record("edit", content)
}

func (f *workspaceServiceFake) Reformat(context.Context) (domain.StateView, error) {
	return f.record("reformat")
}

func (f *workspaceServiceFake) SetInstruction(_ context.Context, text string) (domain.StateView, error) {
	return f.record("set_instruction", text)
}

func (f *workspaceServiceFake) SetTheme(_ context.Context, theme domain.Theme) (domain.StateView, error) {
	return f.record("set_theme", string(theme))
}

func (f *workspaceServiceFake) Subscribe(ctx context.Context) <-chan domain.WorkspaceEvent {
	out := make(chan domain.WorkspaceEvent, 4)
	out <- domain.WorkspaceEvent{Type: domain.EventState, State: f.Snapshot()}
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-f.events:
				if !ok {
					return
				}
				out <- evt
			}
		}
	}()
	return out
}
