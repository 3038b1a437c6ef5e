package revision_test

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/catalog"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/project"
	"github.com/atelierhq/atelier/internal/project/projecttest"
	"github.com/atelierhq/atelier/internal/revision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	admin   = &identity.Identity{UserID: "admin-1", Role: identity.RoleAdmin}
	client1 = &identity.Identity{UserID: "client-1", Role: identity.RoleClient, OrganizationIDs: []string{"org-1"}}
	client2 = &identity.Identity{UserID: "client-2", Role: identity.RoleClient, OrganizationIDs: []string{"org-2"}}
)

type recordingMetrics struct {
	calls []string
}

func (m *recordingMetrics) RecordTransition(_ context.Context, op, from, to string) {
	m.calls = append(m.calls, op+":"+from+"->"+to)
}

func newFixture(t *testing.T, opts ...revision.Option) (*revision.Workflow, *project.Service, *projecttest.Store) {
	t.Helper()
	store := projecttest.NewStore()
	store.AddBrand(catalog.Brand{ID: "brand-1", OrganizationID: "org-1"})

	var seq atomic.Int64
	gen := func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }
	clock := func() time.Time { return now }

	svc := project.NewService(store, project.WithClock(clock), project.WithIDGenerator(gen))
	wf := revision.NewWorkflow(store, append([]revision.Option{revision.WithClock(clock), revision.WithIDGenerator(gen)}, opts...)...)
	return wf, svc, store
}

// TestPurpose: Validates the full revision round trip (Scenario A).
// Scope: Unit Test
// Expected: Admin moves P to READY; the client's request moves it to REVISION with the comment attached and one revision_requested entry.
// Test Case ID: REV-01
func TestRequestRevision_ScenarioA(t *testing.T) {
	metrics := &recordingMetrics{}
	wf, svc, store := newFixture(t, revision.WithMetrics(metrics))
	store.AddProject(project.Project{ID: "P", Name: "Launch", BrandID: "brand-1", Status: project.StatusInProduction, EstimatedCreatives: 10})
	store.AddCreative(project.Creative{ID: "c1", ProjectID: "P"})
	store.AddCreative(project.Creative{ID: "c2", ProjectID: "P"})
	ctx := context.Background()

	_, err := svc.AdminSetStatus(ctx, admin, "P", project.StatusReady)
	require.NoError(t, err)

	p, c, err := wf.RequestRevision(ctx, client1, revision.Request{
		ProjectID:   "P",
		Comment:     "ajustar as cores do CTA",
		CreativeIDs: []string{"c1", "c2"},
	})
	require.NoError(t, err)
	assert.Equal(t, project.StatusRevision, p.Status)
	assert.Equal(t, "ajustar as cores do CTA", c.Content)
	assert.Equal(t, []string{"c1", "c2"}, c.CreativeIDs)
	assert.Equal(t, "client-1", c.AuthorID)
	require.Len(t, p.Comments, 1)
	assert.Equal(t, c.ID, p.Comments[0].ID)

	stored, _ := store.Project("P")
	assert.Equal(t, project.StatusRevision, stored.Status)
	assert.Equal(t, 10, stored.EstimatedCreatives)
	assert.Len(t, store.Comments("P"), 1)

	var revisions []audit.Event
	for _, e := range store.Events() {
		if e.Type == audit.TypeRevisionRequested {
			revisions = append(revisions, e)
		}
	}
	require.Len(t, revisions, 1)
	assert.Equal(t, "client-1", revisions[0].ActorID)
	assert.Equal(t, "org-1", revisions[0].OrganizationID)
	assert.Equal(t, "P", revisions[0].Resource)
	assert.Equal(t, []string{"request_revision:READY->REVISION"}, metrics.calls)
}

// TestPurpose: Validates that a DRAFT project cannot enter revision (Scenario B).
// Scope: Unit Test
// Expected: InvalidState with the guard message; status, comments and activity unchanged.
// Test Case ID: REV-02
func TestRequestRevision_ScenarioB(t *testing.T) {
	wf, _, store := newFixture(t)
	store.AddProject(project.Project{ID: "Q", BrandID: "brand-1", Status: project.StatusDraft})

	_, _, err := wf.RequestRevision(context.Background(), client1, revision.Request{ProjectID: "Q", Comment: "qualquer coisa"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
	assert.Equal(t, "Only READY projects can enter revision", apperr.Message(err))

	stored, _ := store.Project("Q")
	assert.Equal(t, project.StatusDraft, stored.Status)
	assert.Empty(t, store.Comments("Q"))
	assert.Empty(t, store.Events())
}

// TestPurpose: Validates the revision guard over every starting state.
// Scope: Unit Test
// Expected: Succeeds iff the project is READY; other states fail with InvalidState and are left unchanged.
// Test Case ID: REV-03
func TestRequestRevision_GuardMatrix(t *testing.T) {
	for _, st := range project.Statuses {
		t.Run(string(st), func(t *testing.T) {
			wf, _, store := newFixture(t)
			store.AddProject(project.Project{ID: "p", BrandID: "brand-1", Status: st})

			_, _, err := wf.RequestRevision(context.Background(), client1, revision.Request{ProjectID: "p", Comment: "please change the headline"})
			stored, _ := store.Project("p")
			if st == project.StatusReady {
				require.NoError(t, err)
				assert.Equal(t, project.StatusRevision, stored.Status)
				return
			}
			assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err))
			assert.Equal(t, st, stored.Status)
			assert.Empty(t, store.Events())
		})
	}
}

// TestPurpose: Validates authorization and input checks on revision requests.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: Foreign clients are Forbidden, admins pass, short comments and foreign creatives are Validation; failures write nothing.
// Test Case ID: REV-04
func TestRequestRevision_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		actor *identity.Identity
		req   revision.Request
		kind  apperr.Kind
	}{
		{"no identity", nil, revision.Request{ProjectID: "p", Comment: "long enough text"}, apperr.KindUnauthenticated},
		{"foreign client", client2, revision.Request{ProjectID: "p", Comment: "long enough text"}, apperr.KindForbidden},
		{"missing project", client1, revision.Request{ProjectID: "nope", Comment: "long enough text"}, apperr.KindNotFound},
		{"blank comment", client1, revision.Request{ProjectID: "p", Comment: "   "}, apperr.KindValidation},
		{"short comment", client1, revision.Request{ProjectID: "p", Comment: " too short "}, apperr.KindValidation},
		{"foreign creative", client1, revision.Request{ProjectID: "p", Comment: "long enough text", CreativeIDs: []string{"c1", "other"}}, apperr.KindValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wf, _, store := newFixture(t)
			store.AddProject(project.Project{ID: "p", BrandID: "brand-1", Status: project.StatusReady})
			store.AddCreative(project.Creative{ID: "c1", ProjectID: "p"})
			store.AddCreative(project.Creative{ID: "other", ProjectID: "elsewhere"})

			_, _, err := wf.RequestRevision(context.Background(), tc.actor, tc.req)
			assert.Equal(t, tc.kind, apperr.KindOf(err))

			stored, _ := store.Project("p")
			assert.Equal(t, project.StatusReady, stored.Status)
			assert.Empty(t, store.Comments("p"))
			assert.Empty(t, store.Events())
		})
	}

	t.Run("admin", func(t *testing.T) {
		wf, _, store := newFixture(t)
		store.AddProject(project.Project{ID: "p", BrandID: "brand-1", Status: project.StatusReady})
		p, _, err := wf.RequestRevision(context.Background(), admin, revision.Request{ProjectID: "p", Comment: "production note for rework"})
		require.NoError(t, err)
		assert.Equal(t, project.StatusRevision, p.Status)
	})
}

// TestPurpose: Validates the configurable minimum comment length counts runes after normalization.
// Scope: Unit Test
// Expected: Accented text at the limit passes, decomposed text is measured after composition, a lower limit accepts shorter comments.
// Test Case ID: REV-05
func TestRequestRevision_CommentLength(t *testing.T) {
	wf, _, store := newFixture(t)
	store.AddProject(project.Project{ID: "p", BrandID: "brand-1", Status: project.StatusReady})

	_, c, err := wf.RequestRevision(context.Background(), client1, revision.Request{ProjectID: "p", Comment: strings.Repeat("\u00e9", 10)})
	require.NoError(t, err)
	assert.Equal(t, 10, len([]rune(c.Content)))

	// Five decomposed characters are ten code points but only five runes after NFC.
	store.SetStatus("p", project.StatusReady)
	_, _, err = wf.RequestRevision(context.Background(), client1, revision.Request{ProjectID: "p", Comment: strings.Repeat("e\u0301", 5)})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	wf, _, store = newFixture(t, revision.WithMinCommentLength(1))
	store.AddProject(project.Project{ID: "p", BrandID: "brand-1", Status: project.StatusReady})
	_, _, err = wf.RequestRevision(context.Background(), client1, revision.Request{ProjectID: "p", Comment: "ok"})
	assert.NoError(t, err)
}

// TestPurpose: Validates that a concurrent status change is detected.
// Scope: Unit Test
// Expected: Conflict, the concurrent writer's status survives and no comment is stored.
// Test Case ID: REV-06
func TestRequestRevision_Conflict(t *testing.T) {
	wf, _, store := newFixture(t)
	store.AddProject(project.Project{ID: "p", BrandID: "brand-1", Status: project.StatusReady})
	store.BeforeUpdateStatus = func(id string) {
		store.BeforeUpdateStatus = nil
		store.SetStatus(id, project.StatusApproved)
	}

	_, _, err := wf.RequestRevision(context.Background(), client1, revision.Request{ProjectID: "p", Comment: "change the palette"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	stored, _ := store.Project("p")
	assert.Equal(t, project.StatusApproved, stored.Status)
	assert.Empty(t, store.Comments("p"))
}
