package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/devgen-studio/internal/core/domain"
)

type workspaceStoreFake struct {
	mu     sync.Mutex
	loaded domain.Workspace
	saved  []domain.Workspace
	err    error

	// saveStarted and release hold the next Save open until released.
	saveStarted chan struct{}
	release     chan struct{}
}

func (f *workspaceStoreFake) Load(context.Context) (domain.Workspace, error) {
	return f.loaded, nil
}

func (f *workspaceStoreFake) Save(_ context.Context, ws domain.Workspace) error {
	f.mu.Lock()
	started, release := f.saveStarted, f.release
	f.saveStarted, f.release = nil, nil
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, ws)
	return nil
}

func (f *workspaceStoreFake) lastSaved() domain.Workspace {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return domain.Workspace{}
	}
	return f.saved[len(f.saved)-1]
}

func (f *workspaceStoreFake) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type generatorFake struct {
	mu          sync.Mutex
	reply       string
	err         error
	calls       int
	lastMarkup  string
	release     chan struct{}
	callStarted chan struct{}
}

func (f *generatorFake) Generate(ctx context.Context, _ string) (string, error) {
	return f.respond(ctx, "")
}

func (f *generatorFake) Refine(ctx context.Context, _ string, currentMarkup string) (string, error) {
	return f.respond(ctx, currentMarkup)
}

func (f *generatorFake) respond(ctx context.Context, currentMarkup string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastMarkup = currentMarkup
	release, started := f.release, f.callStarted
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *generatorFake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fetcherFake struct {
	body  string
	err   error
	calls int
	path  string
}

func (f *fetcherFake) FetchEntry(_ context.Context, repoPath string) (string, error) {
	f.calls++
	f.path = repoPath
	return f.body, f.err
}

type publisherFake struct {
	mu     sync.Mutex
	events []domain.RevisionEvent
}

func (f *publisherFake) PublishRevision(_ context.Context, event domain.RevisionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *publisherFake) published() []domain.RevisionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RevisionEvent(nil), f.events...)
}

type observerFake struct {
	mu         sync.Mutex
	operations []string
	flushes    int
}

func (f *observerFake) ObserveOperation(operation, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operations = append(f.operations, operation+":"+outcome)
}

func (f *observerFake) ObserveAutosaveFlush(error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

type workspaceFixture struct {
	uc        *WorkspaceUseCase
	store     *workspaceStoreFake
	generator *generatorFake
	fetcher   *fetcherFake
	publisher *publisherFake
	observer  *observerFake
}

func newWorkspaceFixture(t *testing.T, delay time.Duration) *workspaceFixture {
	t.Helper()
	f := &workspaceFixture{
		store:     &workspaceStoreFake{},
		generator: &generatorFake{},
		fetcher:   &fetcherFake{},
		publisher: &publisherFake{},
		observer:  &observerFake{},
	}
	f.uc = NewWorkspaceUseCase(f.store, f.generator, f.fetcher, f.publisher, f.observer, WorkspaceConfig{
		WorkspaceID:  "test",
		PreviewDelay: delay,
		SavedDelay:   delay,
		IdleDelay:    delay,
	})
	f.uc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	t.Cleanup(f.uc.Close)
	return f
}

func TestGenerateAcceptsFencedReply(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.generator.reply = "```html\n<button style=\"color:red\">Hi</button>\n```"

	view, err := f.uc.Generate(context.Background(), "a red button")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if view.Document != `<button style="color:red">Hi</button>` {
		t.Fatalf("unexpected document: %q", view.Document)
	}
	if view.PreviousDocument != domain.WelcomeDocument {
		t.Fatalf("expected welcome document snapshot, got %q", view.PreviousDocument)
	}
	if view.Origin != (domain.OriginRecord{Type: domain.OriginInstruction, Value: "a red button"}) {
		t.Fatalf("unexpected origin: %+v", view.Origin)
	}
	if view.OriginLabel != `From prompt: "a red button"` {
		t.Fatalf("unexpected origin label: %q", view.OriginLabel)
	}
	if view.Instruction != "" {
		t.Fatalf("expected instruction cleared, got %q", view.Instruction)
	}
	if view.Operation != domain.OperationIdle {
		t.Fatalf("expected idle after generate, got %q", view.Operation)
	}
	if f.store.saveCount() == 0 {
		t.Fatalf("expected the accepted document to be saved synchronously")
	}
	if len(f.observer.operations) != 1 || f.observer.operations[0] != "generating:success" {
		t.Fatalf("unexpected observations: %v", f.observer.operations)
	}
}

func TestGenerateRejectsBlankInstruction(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)

	_, err := f.uc.Generate(context.Background(), "   \n")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if f.generator.callCount() != 0 {
		t.Fatalf("generator must not be called for a blank instruction")
	}
}

func TestGenerateEmptyReplyLeavesStateUnchanged(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.generator.reply = "```html\n   \n```"

	view, err := f.uc.Generate(context.Background(), "anything")
	if !domain.IsKind(err, domain.ErrEmptyResponse) {
		t.Fatalf("expected empty response error, got %v", err)
	}
	if domain.UserMessage(err) != "The AI returned an empty response. Please try a different prompt." {
		t.Fatalf("unexpected message: %q", domain.UserMessage(err))
	}
	if view.Document != domain.WelcomeDocument || view.PreviousDocument != "" {
		t.Fatalf("document changed after empty reply: %+v", view)
	}
	if view.Instruction != "anything" {
		t.Fatalf("expected instruction kept, got %q", view.Instruction)
	}
	if view.Operation != domain.OperationIdle {
		t.Fatalf("expected idle after failure, got %q", view.Operation)
	}
}

func TestGenerateTransportFailureIsUpstream(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.generator.err = errors.New("connection reset")

	view, err := f.uc.Generate(context.Background(), "landing page")
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if domain.UserMessage(err) != "Failed to generate code from the AI service." {
		t.Fatalf("unexpected message: %q", domain.UserMessage(err))
	}
	if view.Operation != domain.OperationIdle || view.Document != domain.WelcomeDocument {
		t.Fatalf("unexpected state after failure: %+v", view)
	}
}

func TestGenerateTemporaryFailureKeepsKind(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.generator.err = domain.WrapError(domain.ErrTemporary, "generate", errors.New("circuit open"))

	_, err := f.uc.Generate(context.Background(), "landing page")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("temporary failure must not be reported as upstream")
	}
}

func TestRefineWithoutDocumentSkipsGenerator(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	if _, err := f.uc.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	_, err := f.uc.Refine(context.Background(), "make it blue")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if f.generator.callCount() != 0 {
		t.Fatalf("generator called %d times", f.generator.callCount())
	}
}

func TestRefineSendsCurrentDocument(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.generator.reply = "<p>blue</p>"

	view, err := f.uc.Refine(context.Background(), "make it blue")
	if err != nil {
		t.Fatalf("Refine() error: %v", err)
	}
	if f.generator.lastMarkup != domain.WelcomeDocument {
		t.Fatalf("refine received %q", f.generator.lastMarkup)
	}
	if view.Document != "<p>blue</p>" || view.PreviousDocument != domain.WelcomeDocument {
		t.Fatalf("unexpected state: %+v", view)
	}
}

func TestImportRemoteNotFoundKeepsState(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.fetcher.err = domain.NewUserError(domain.ErrUpstream,
		"Failed to fetch index.html. Status: 404. Check the repository URL and that the 'main' branch exists.", nil)

	view, err := f.uc.ImportRemote(context.Background(), "https://github.com/acme/missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(domain.UserMessage(err), "404") {
		t.Fatalf("expected status code in message, got %q", domain.UserMessage(err))
	}
	if f.fetcher.path != "acme/missing" {
		t.Fatalf("unexpected fetch path %q", f.fetcher.path)
	}
	if view.Document != domain.WelcomeDocument || view.Origin.Type != domain.OriginInitial || view.PreviousDocument != "" {
		t.Fatalf("state changed after failed clone: %+v", view)
	}
	if view.Operation != domain.OperationIdle {
		t.Fatalf("expected idle, got %q", view.Operation)
	}
}

func TestImportRemoteInvalidURLSkipsFetch(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)

	_, err := f.uc.ImportRemote(context.Background(), "https://gitlab.com/acme/site")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if f.fetcher.calls != 0 {
		t.Fatalf("fetcher must not be called for an invalid URL")
	}
}

func TestImportRemoteInjectsHeadAssets(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.fetcher.body = "<html><head><title>Site</title></head><body></body></html>"

	view, err := f.uc.ImportRemote(context.Background(), "https://github.com/acme/site.git")
	if err != nil {
		t.Fatalf("ImportRemote() error: %v", err)
	}
	if !strings.Contains(view.Document, "cdn.tailwindcss.com") {
		t.Fatalf("expected tailwind script injected: %s", view.Document)
	}
	if view.Origin != (domain.OriginRecord{Type: domain.OriginRepository, Value: "acme/site"}) {
		t.Fatalf("unexpected origin: %+v", view.Origin)
	}
}

func TestImportFileUsesFallbackName(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)

	view, err := f.uc.ImportFile(context.Background(), "", "<div><p>x</p></div>")
	if err != nil {
		t.Fatalf("ImportFile() error: %v", err)
	}
	if view.Origin != (domain.OriginRecord{Type: domain.OriginUpload, Value: "local file"}) {
		t.Fatalf("unexpected origin: %+v", view.Origin)
	}
	if view.Document != "<div>\n  <p>x</p>\n</div>" {
		t.Fatalf("unexpected document: %q", view.Document)
	}
}

func TestReplacingActionsSnapshotPriorDocument(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	ctx := context.Background()
	f.generator.reply = "<p>one</p>"
	f.fetcher.body = "<p>two</p>"

	steps := []struct {
		name string
		run  func() (domain.StateView, error)
	}{
		{"generate", func() (domain.StateView, error) { return f.uc.Generate(ctx, "one") }},
		{"upload", func() (domain.StateView, error) { return f.uc.ImportFile(ctx, "a.html", "<p>upload</p>") }},
		{"clone", func() (domain.StateView, error) { return f.uc.ImportRemote(ctx, "https://github.com/a/b") }},
		{"clear", func() (domain.StateView, error) { return f.uc.Clear(ctx) }},
	}

	for _, step := range steps {
		before := f.uc.Snapshot().Document
		view, err := step.run()
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if view.PreviousDocument != before {
			t.Fatalf("%s: previous document %q, want %q", step.name, view.PreviousDocument, before)
		}
	}

	final := f.uc.Snapshot()
	if final.Document != "" || final.Origin.Type != domain.OriginCleared || final.Instruction != "" {
		t.Fatalf("unexpected cleared state: %+v", final)
	}
}

func TestEditAndReformatDoNotSnapshot(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	ctx := context.Background()

	view, err := f.uc.Edit(ctx, "<div><span>a</span></div>")
	if err != nil {
		t.Fatalf("Edit() error: %v", err)
	}
	if view.PreviousDocument != "" || view.Origin.Type != domain.OriginInitial {
		t.Fatalf("edit must not snapshot or change origin: %+v", view)
	}

	view, err = f.uc.Reformat(ctx)
	if err != nil {
		t.Fatalf("Reformat() error: %v", err)
	}
	if view.Document != "<div>\n  <span>a</span>\n</div>" {
		t.Fatalf("unexpected formatted document: %q", view.Document)
	}
	if view.PreviousDocument != "" {
		t.Fatalf("reformat must not snapshot: %q", view.PreviousDocument)
	}
	if f.store.saveCount() != 0 {
		t.Fatalf("edits are persisted by autosave, got %d synchronous saves", f.store.saveCount())
	}
}

func TestBusyOperationRejectsOthers(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	ctx := context.Background()
	f.generator.reply = "<p>done</p>"
	f.generator.release = make(chan struct{})
	f.generator.callStarted = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.uc.Generate(ctx, "slow page")
		done <- err
	}()
	<-f.generator.callStarted

	if got := f.uc.Snapshot().Operation; got != domain.OperationGenerating {
		t.Fatalf("expected generating, got %q", got)
	}
	if _, err := f.uc.ImportFile(ctx, "x.html", "<p>x</p>"); !domain.IsKind(err, domain.ErrBusy) {
		t.Fatalf("ImportFile while busy: %v", err)
	}
	if _, err := f.uc.Edit(ctx, "typed"); !domain.IsKind(err, domain.ErrBusy) {
		t.Fatalf("Edit while busy: %v", err)
	}
	if _, err := f.uc.ImportRemote(ctx, "https://github.com/a/b"); !domain.IsKind(err, domain.ErrBusy) {
		t.Fatalf("ImportRemote while busy: %v", err)
	}
	if _, err := f.uc.Clear(ctx); !domain.IsKind(err, domain.ErrBusy) {
		t.Fatalf("Clear while busy: %v", err)
	}
	if f.fetcher.calls != 0 {
		t.Fatalf("fetcher called while busy")
	}

	close(f.generator.release)
	if err := <-done; err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	view := f.uc.Snapshot()
	if view.Operation != domain.OperationIdle || view.Document != "<p>done</p>" {
		t.Fatalf("unexpected state after release: %+v", view)
	}
}

func TestFailedSaveLeavesStateUnchanged(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	f.store.err = errors.New("disk full")

	view, err := f.uc.ImportFile(context.Background(), "a.html", "<p>a</p>")
	if err == nil {
		t.Fatalf("expected error")
	}
	if view.Document != domain.WelcomeDocument || view.Origin.Type != domain.OriginInitial {
		t.Fatalf("state changed after failed save: %+v", view)
	}
}

func TestImportInstallsTheSavedStateWhenEditRaces(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	saveStarted, release := make(chan struct{}), make(chan struct{})
	f.store.saveStarted, f.store.release = saveStarted, release

	type result struct {
		view domain.StateView
		err  error
	}
	imported := make(chan result, 1)
	go func() {
		view, err := f.uc.ImportFile(context.Background(), "page.html", "<p>imported</p>")
		imported <- result{view, err}
	}()
	<-saveStarted

	edited := make(chan struct{})
	go func() {
		defer close(edited)
		_, _ = f.uc.Edit(context.Background(), "<p>typed</p>")
	}()

	select {
	case <-edited:
		t.Fatalf("edit must wait for the import write to finish")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	res := <-imported
	if res.err != nil {
		t.Fatalf("ImportFile() error: %v", res.err)
	}
	saved := f.store.lastSaved()
	if res.view.Document != saved.Document || res.view.PreviousDocument != saved.PriorDocument || res.view.Revision != saved.Revision {
		t.Fatalf("installed state %+v differs from saved %+v", res.view, saved)
	}
	if saved.PriorDocument != domain.WelcomeDocument {
		t.Fatalf("expected welcome document snapshot, got %q", saved.PriorDocument)
	}

	<-edited
	if view := f.uc.Snapshot(); view.Document != "<p>typed</p>" || view.PreviousDocument != domain.WelcomeDocument {
		t.Fatalf("edit should apply on top of the import, got %+v", view)
	}
}

func TestSetThemeValidates(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)

	if _, err := f.uc.SetTheme(context.Background(), "sepia"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	view, err := f.uc.SetTheme(context.Background(), domain.ThemeLight)
	if err != nil {
		t.Fatalf("SetTheme() error: %v", err)
	}
	if view.Theme != domain.ThemeLight {
		t.Fatalf("unexpected theme %q", view.Theme)
	}
}

func TestRestoreLoadsPersistedState(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	persisted := domain.NewWorkspace()
	persisted.Document = "<p>saved</p>"
	persisted.Origin = domain.FromRepository{Path: "a/b"}
	persisted.Revision = 7
	persisted.Operation = domain.OperationCloning
	f.store.loaded = persisted

	if err := f.uc.Restore(context.Background()); err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	view := f.uc.Snapshot()
	if view.Document != "<p>saved</p>" || view.Revision != 7 || view.Operation != domain.OperationIdle {
		t.Fatalf("unexpected restored state: %+v", view)
	}
}

func TestEditsCoalesceIntoOneSaveCycle(t *testing.T) {
	f := newWorkspaceFixture(t, 30*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := f.uc.Subscribe(ctx)
	if first := <-events; first.Type != domain.EventState {
		t.Fatalf("expected initial state push, got %q", first.Type)
	}

	if _, err := f.uc.Edit(ctx, "<p>a</p>"); err != nil {
		t.Fatalf("Edit() error: %v", err)
	}
	if _, err := f.uc.Edit(ctx, "<p>ab</p>"); err != nil {
		t.Fatalf("Edit() error: %v", err)
	}

	var (
		previews    int
		persistence []domain.PersistenceStatus
	)
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case domain.EventPreview:
				previews++
				if ev.State.Document != "<p>ab</p>" {
					t.Fatalf("preview carried stale document %q", ev.State.Document)
				}
			case domain.EventPersistence:
				persistence = append(persistence, ev.State.Persistence)
				if ev.State.Persistence == domain.PersistenceIdle {
					break collect
				}
			}
		case <-deadline:
			t.Fatalf("timed out; previews=%d persistence=%v", previews, persistence)
		}
	}

	time.Sleep(100 * time.Millisecond)
	for len(events) > 0 {
		ev := <-events
		if ev.Type == domain.EventPreview {
			previews++
		}
		if ev.Type == domain.EventPersistence {
			persistence = append(persistence, ev.State.Persistence)
		}
	}

	if previews != 1 {
		t.Fatalf("expected exactly one preview, got %d", previews)
	}
	want := []domain.PersistenceStatus{domain.PersistenceSaving, domain.PersistenceSaved, domain.PersistenceIdle}
	if len(persistence) != len(want) {
		t.Fatalf("unexpected persistence cycle: %v", persistence)
	}
	for i := range want {
		if persistence[i] != want[i] {
			t.Fatalf("unexpected persistence cycle: %v", persistence)
		}
	}
	if f.store.saveCount() != 1 {
		t.Fatalf("expected one autosave write, got %d", f.store.saveCount())
	}
	published := f.publisher.published()
	if len(published) != 1 || published[0].Document != "<p>ab</p>" || published[0].WorkspaceID != "test" {
		t.Fatalf("unexpected revision events: %+v", published)
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	f := newWorkspaceFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	events := f.uc.Subscribe(ctx)
	<-events
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			for range events {
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed after cancel")
	}
	deadline := time.Now().Add(time.Second)
	for f.uc.hub.size() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
