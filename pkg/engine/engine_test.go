package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
)

const reviewDefinition = `
id: doc-review
version: "1.0"
initial_state: draft
initial_context:
  phase: drafting
states:
  - name: draft
    prompt: Write the document and submit it.
  - name: review
    prompt: Review the submitted document.
    required_artifacts: [document]
  - name: done
    is_final: true
events:
  - name: submit
    allowed_roles: [agent]
  - name: approve
    allowed_roles: [reviewer]
  - name: reject
    allowed_roles: [reviewer]
transitions:
  - from: draft
    event: submit
    to: review
    guard: has_document
  - from: review
    event: approve
    to: done
  - from: review
    event: reject
    to: draft
guards:
  has_document:
    type: artifact_exists
    artifact_type: document
artifacts:
  - type: document
roles:
  - name: agent
  - name: reviewer
`

const triageDefinition = `
id: triage
version: "1"
initial_state: open
states:
  - name: open
  - name: fast_lane
  - name: slow_lane
  - name: backlog
  - name: done
    is_final: true
events:
  - name: route
    allowed_roles: ["*"]
  - name: finish
    allowed_roles: ["*"]
transitions:
  - from: open
    event: route
    to: fast_lane
    guard: is_urgent
  - from: open
    event: route
    to: slow_lane
    guard: is_scheduled
  - from: open
    event: route
    to: backlog
  - from: fast_lane
    event: finish
    to: done
  - from: slow_lane
    event: finish
    to: done
  - from: backlog
    event: finish
    to: done
guards:
  is_urgent:
    type: context_equals
    var: priority
    value: urgent
  is_scheduled:
    type: context_exists
    var: due_date
`

func newTestEngine(t *testing.T, definitions map[string]string) *Engine {
	t.Helper()
	root := t.TempDir()
	dir := constants.GetProcessesDir(root)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for id, body := range definitions {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".yaml"), []byte(body), 0o644))
	}
	return New(root)
}

func placeArtifact(t *testing.T, basePath, relPath string) {
	t.Helper()
	full := filepath.Join(basePath, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte("content"), 0o644))
}

func requireCode(t *testing.T, err error, code Code) *Error {
	t.Helper()
	require.Error(t, err)
	e := AsEngineError(err)
	require.Equal(t, code, e.Code, "got %v", err)
	return e
}

func TestCreateRun(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})

	created, err := e.CreateRun("doc-review", map[string]any{"ticket": "T-42", "phase": "kickoff"})
	require.NoError(t, err)

	assert.Equal(t, "doc-review", created.ProcessID)
	assert.Equal(t, "draft", created.InitialState)
	assert.Equal(t, 1, created.Revision)
	// Caller entries overlay the process initial_context.
	assert.Equal(t, "kickoff", created.Context["phase"])
	assert.Equal(t, "T-42", created.Context["ticket"])

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)
	assert.Equal(t, "draft", state.CurrentState)
	assert.Equal(t, 1, state.Revision)
	assert.Equal(t, "Write the document and submit it.", state.CurrentStatePrompt)
	assert.False(t, state.IsFinal)
	assert.NotEmpty(t, state.ArtifactBasePath)
}

func TestCreateRunUnknownProcess(t *testing.T) {
	e := newTestEngine(t, nil)
	_, err := e.CreateRun("ghost", nil)
	requireCode(t, err, CodeProcessNotFound)
}

func TestHappyPath(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)
	placeArtifact(t, state.ArtifactBasePath, "document.md")

	res, err := e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-1",
		Role:             "agent",
		ArtifactPaths:    []string{"document.md"},
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.Replayed)
	require.NotNil(t, res.Transition)
	assert.Equal(t, "draft", res.Transition.From)
	assert.Equal(t, "review", res.Transition.To)
	assert.Equal(t, 2, res.NewRevision)
	assert.Equal(t, "Review the submitted document.", res.NewStatePrompt)

	res, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "approve",
		ExpectedRevision: 2,
		IdempotencyKey:   "approve-1",
		Role:             "reviewer",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.NewRevision)

	state, err = e.GetState(created.RunID)
	require.NoError(t, err)
	assert.Equal(t, "done", state.CurrentState)
	assert.True(t, state.IsFinal)

	history, err := e.GetEventHistory(created.RunID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, constants.InitEventName, history[0].Event)
	assert.Equal(t, "submit", history[1].Event)
	assert.Equal(t, []string{"document.md"}, history[1].ArtifactPaths)
	assert.Equal(t, "approve", history[2].Event)
	// Artifact paths are cumulative.
	assert.Equal(t, []string{"document.md"}, history[2].ArtifactPaths)
}

func TestRevisionConflict(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)
	placeArtifact(t, state.ArtifactBasePath, "document.md")

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-1",
		Role:             "agent",
		ArtifactPaths:    []string{"document.md"},
	})
	require.NoError(t, err)

	// A second writer still holding revision 1 must lose.
	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "approve",
		ExpectedRevision: 1,
		IdempotencyKey:   "approve-1",
		Role:             "reviewer",
	})
	engErr := requireCode(t, err, CodeRevisionConflict)
	assert.Equal(t, 2, engErr.Details["current_revision"])
	assert.Equal(t, 1, engErr.Details["expected_revision"])
}

func TestIdempotentReplayWinsOverStaleRevision(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)
	placeArtifact(t, state.ArtifactBasePath, "document.md")

	req := EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-once",
		Role:             "agent",
		ArtifactPaths:    []string{"document.md"},
	}
	first, err := e.EmitEvent(req)
	require.NoError(t, err)

	// The retry carries a now-stale expected_revision. The idempotency
	// lookup runs before the revision check, so it replays as success.
	replay, err := e.EmitEvent(req)
	require.NoError(t, err)
	assert.True(t, replay.Accepted)
	assert.True(t, replay.Replayed)
	assert.Equal(t, first.NewRevision, replay.NewRevision)
	require.NotNil(t, replay.Replay)
	assert.Equal(t, "review", replay.Replay.State)

	// The log holds one committed row for the key, not two.
	history, err := e.GetEventHistory(created.RunID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestGuardBlocksThenPasses(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-blocked",
		Role:             "agent",
	})
	engErr := requireCode(t, err, CodeGuardFailed)
	assert.Equal(t, "has_document", engErr.Details["guard_name"])
	require.NotEmpty(t, engErr.Details["missing_requirements"])

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Revision, "blocked emit must not advance the run")
	placeArtifact(t, state.ArtifactBasePath, "document.md")

	res, err := e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-ok",
		Role:             "agent",
		ArtifactPaths:    []string{"document.md"},
	})
	require.NoError(t, err)
	assert.Equal(t, "review", res.Transition.To)
}

func TestTransitionTieBreak(t *testing.T) {
	t.Run("first satisfied guard wins in definition order", func(t *testing.T) {
		e := newTestEngine(t, map[string]string{"triage": triageDefinition})
		created, err := e.CreateRun("triage", map[string]any{
			"priority": "urgent",
			"due_date": "2026-09-01",
		})
		require.NoError(t, err)

		res, err := e.EmitEvent(EmitRequest{
			RunID:            created.RunID,
			Event:            "route",
			ExpectedRevision: 1,
			IdempotencyKey:   "route-1",
			Role:             "agent",
		})
		require.NoError(t, err)
		assert.Equal(t, "fast_lane", res.Transition.To)
	})

	t.Run("second guard wins when first is unsatisfied", func(t *testing.T) {
		e := newTestEngine(t, map[string]string{"triage": triageDefinition})
		created, err := e.CreateRun("triage", map[string]any{"due_date": "2026-09-01"})
		require.NoError(t, err)

		res, err := e.EmitEvent(EmitRequest{
			RunID:            created.RunID,
			Event:            "route",
			ExpectedRevision: 1,
			IdempotencyKey:   "route-1",
			Role:             "agent",
		})
		require.NoError(t, err)
		assert.Equal(t, "slow_lane", res.Transition.To)
	})

	t.Run("guardless fallback when no guard is satisfied", func(t *testing.T) {
		e := newTestEngine(t, map[string]string{"triage": triageDefinition})
		created, err := e.CreateRun("triage", nil)
		require.NoError(t, err)

		res, err := e.EmitEvent(EmitRequest{
			RunID:            created.RunID,
			Event:            "route",
			ExpectedRevision: 1,
			IdempotencyKey:   "route-1",
			Role:             "agent",
		})
		require.NoError(t, err)
		assert.Equal(t, "backlog", res.Transition.To)
	})
}

const forkDefinition = `
id: fork
version: "1"
initial_state: start
states:
  - name: start
  - name: end_a
    is_final: true
  - name: end_b
    is_final: true
events:
  - name: submit
    allowed_roles: [agent, reviewer]
transitions:
  - from: start
    event: submit
    to: end_a
    allowed_roles: [agent]
  - from: start
    event: submit
    to: end_b
    allowed_roles: [reviewer]
roles:
  - name: agent
  - name: reviewer
`

func TestRoleTieBreak(t *testing.T) {
	emit := func(t *testing.T, role string) (*EmitResult, error) {
		t.Helper()
		e := newTestEngine(t, map[string]string{"fork": forkDefinition})
		created, err := e.CreateRun("fork", nil)
		require.NoError(t, err)
		return e.EmitEvent(EmitRequest{
			RunID:            created.RunID,
			Event:            "submit",
			ExpectedRevision: 1,
			IdempotencyKey:   "submit-1",
			Role:             role,
		})
	}

	res, err := emit(t, "agent")
	require.NoError(t, err)
	assert.Equal(t, "end_a", res.Transition.To)

	res, err = emit(t, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, "end_b", res.Transition.To)

	_, err = emit(t, "stranger")
	requireCode(t, err, CodeForbidden)
}

func TestPathTraversalRejected(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-evil",
		Role:             "agent",
		ArtifactPaths:    []string{"../../etc/passwd"},
	})
	engErr := requireCode(t, err, CodeInvalidPayload)

	issues, ok := engErr.Details["validation_errors"].([]ValidationIssue)
	require.True(t, ok)
	require.Len(t, issues, 1)
	assert.Equal(t, "/artifact_paths/0", issues[0].Path)
}

func TestMissingIdempotencyKey(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		Role:             "agent",
	})
	engErr := requireCode(t, err, CodeInvalidPayload)
	issues := engErr.Details["validation_errors"].([]ValidationIssue)
	assert.Equal(t, "/idempotency_key", issues[0].Path)
}

func TestEmitPermissions(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-wrong-role",
		Role:             "reviewer",
	})
	requireCode(t, err, CodeForbidden)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "frobnicate",
		ExpectedRevision: 1,
		IdempotencyKey:   "unknown-event",
		Role:             "agent",
	})
	requireCode(t, err, CodeInvalidEvent)

	// approve is defined but has no transition from draft.
	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "approve",
		ExpectedRevision: 1,
		IdempotencyKey:   "approve-early",
		Role:             "reviewer",
	})
	requireCode(t, err, CodeInvalidEvent)
}

func TestEmitUnknownRun(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})

	_, err := e.EmitEvent(EmitRequest{
		RunID:            "run-01890000-0000-7000-8000-000000000000",
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "k",
		Role:             "agent",
	})
	requireCode(t, err, CodeRunNotFound)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            "not-a-run-id",
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "k",
		Role:             "agent",
	})
	requireCode(t, err, CodeInvalidInput)
}

func TestContextMergeAfterCommit(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", map[string]any{"phase": "drafting"})
	require.NoError(t, err)

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)
	placeArtifact(t, state.ArtifactBasePath, "document.md")

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-1",
		Role:             "agent",
		Payload:          map[string]any{"phase": "reviewing", "pages": 12},
		ArtifactPaths:    []string{"document.md"},
	})
	require.NoError(t, err)

	state, err = e.GetState(created.RunID)
	require.NoError(t, err)
	assert.Equal(t, "reviewing", state.Context["phase"])
	assert.EqualValues(t, 12, state.Context["pages"])
}

func TestGetStateProjection(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)

	// No document yet: the guard shows up as missing and submit is blocked.
	require.Len(t, state.MissingGuards, 1)
	assert.Contains(t, state.MissingGuards[0], "has_document")
	assert.Empty(t, state.AllowedEvents)

	placeArtifact(t, state.ArtifactBasePath, "document.md")
	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "submit",
		ExpectedRevision: 1,
		IdempotencyKey:   "submit-1",
		Role:             "agent",
		ArtifactPaths:    []string{"document.md"},
	})
	require.NoError(t, err)

	state, err = e.GetState(created.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"document"}, state.RequiredArtifacts)
	assert.Empty(t, state.MissingGuards)
	assert.ElementsMatch(t, []string{"approve", "reject"}, state.AllowedEvents)
}

func TestListEvents(t *testing.T) {
	e := newTestEngine(t, map[string]string{"doc-review": reviewDefinition})
	created, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)

	// Guard unsatisfied: nothing allowed, blocked listing names the guard.
	res, err := e.ListEvents(created.RunID, false)
	require.NoError(t, err)
	assert.Equal(t, "draft", res.CurrentState)
	assert.Empty(t, res.Events)

	res, err = e.ListEvents(created.RunID, true)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "submit", res.Events[0].Name)
	assert.False(t, res.Events[0].Allowed)
	assert.Contains(t, res.Events[0].Reason, "has_document")

	state, err := e.GetState(created.RunID)
	require.NoError(t, err)
	placeArtifact(t, state.ArtifactBasePath, "document.md")

	res, err = e.ListEvents(created.RunID, false)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "submit", res.Events[0].Name)
	assert.True(t, res.Events[0].Allowed)
}

func TestListRuns(t *testing.T) {
	e := newTestEngine(t, map[string]string{
		"doc-review": reviewDefinition,
		"triage":     triageDefinition,
	})

	first, err := e.CreateRun("doc-review", nil)
	require.NoError(t, err)
	second, err := e.CreateRun("triage", nil)
	require.NoError(t, err)

	summaries, err := e.ListRuns()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	// Newest first.
	assert.Equal(t, second.RunID, summaries[0].RunID)
	assert.Equal(t, "triage", summaries[0].ProcessID)
	assert.Equal(t, first.RunID, summaries[1].RunID)
	assert.Equal(t, "draft", summaries[1].CurrentState)
}

func TestArtifactPathsAccumulate(t *testing.T) {
	e := newTestEngine(t, map[string]string{"triage": triageDefinition})
	created, err := e.CreateRun("triage", nil)
	require.NoError(t, err)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "route",
		ExpectedRevision: 1,
		IdempotencyKey:   "route-1",
		Role:             "agent",
		ArtifactPaths:    []string{"notes/a.md", "notes/b.md"},
	})
	require.NoError(t, err)

	_, err = e.EmitEvent(EmitRequest{
		RunID:            created.RunID,
		Event:            "finish",
		ExpectedRevision: 2,
		IdempotencyKey:   "finish-1",
		Role:             "agent",
		ArtifactPaths:    []string{"notes/b.md", "notes/c.md"},
	})
	require.NoError(t, err)

	history, err := e.GetEventHistory(created.RunID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, []string{"notes/a.md", "notes/b.md", "notes/c.md"}, last.ArtifactPaths)
}
