package project_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atelierhq/atelier/internal/apperr"
	"github.com/atelierhq/atelier/internal/audit"
	"github.com/atelierhq/atelier/internal/catalog"
	"github.com/atelierhq/atelier/internal/identity"
	"github.com/atelierhq/atelier/internal/project"
	"github.com/atelierhq/atelier/internal/project/projecttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var (
	admin   = &identity.Identity{UserID: "admin-1", Role: identity.RoleAdmin}
	client1 = &identity.Identity{UserID: "client-1", Role: identity.RoleClient, OrganizationIDs: []string{"org-1"}}
	client2 = &identity.Identity{UserID: "client-2", Role: identity.RoleClient, OrganizationIDs: []string{"org-2"}}
)

func newFixture(t *testing.T) (*project.Service, *projecttest.Store) {
	t.Helper()
	store := projecttest.NewStore()
	store.AddBrand(catalog.Brand{ID: "brand-1", OrganizationID: "org-1", Name: "Acme"})
	store.AddBrand(catalog.Brand{ID: "brand-2", OrganizationID: "org-2", Name: "Globex"})
	store.AddTemplate(catalog.Template{ID: "tpl-ok", BrandID: "brand-1", Status: catalog.TemplateApproved, Active: true})
	store.AddTemplate(catalog.Template{ID: "tpl-pending", BrandID: "brand-1", Status: catalog.TemplatePending, Active: true})
	store.AddTemplate(catalog.Template{ID: "tpl-inactive", BrandID: "brand-1", Status: catalog.TemplateApproved})
	store.AddTemplate(catalog.Template{ID: "tpl-other", BrandID: "brand-2", Status: catalog.TemplateApproved, Active: true})

	var seq atomic.Int64
	svc := project.NewService(store,
		project.WithClock(func() time.Time { return now }),
		project.WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)
	return svc, store
}

// TestPurpose: Validates campaign creation against brand ownership and template approval.
// Scope: Unit Test
// Security: Tenant isolation on create
// Expected: Campaign starts IN_PRODUCTION with one created_project activity; estimate falls back to the deliverables total.
// Test Case ID: PRJ-02
func TestService_Create_Campaign(t *testing.T) {
	svc, store := newFixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, client1, project.CreateInput{
		Name:       "  Spring launch ",
		BrandID:    "brand-1",
		TemplateID: "tpl-ok",
		Type:       project.TypeCampaign,
		Deliverables: []project.Deliverable{
			{Platform: project.PlatformInstagram, Format: project.FormatFeed, Quantity: 4},
			{Platform: project.PlatformLinkedIn, Format: project.FormatBanner, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Spring launch", p.Name)
	assert.Equal(t, project.StatusInProduction, p.Status)
	assert.Equal(t, "org-1", p.OrganizationID)
	assert.Equal(t, 6, p.EstimatedCreatives)
	require.NotNil(t, p.TemplateID)
	assert.Equal(t, "tpl-ok", *p.TemplateID)

	stored, ok := store.Project(p.ID)
	require.True(t, ok)
	assert.Equal(t, project.StatusInProduction, stored.Status)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.TypeProjectCreated, events[0].Type)
	assert.Equal(t, "client-1", events[0].ActorID)
	assert.Equal(t, "org-1", events[0].OrganizationID)
	assert.Equal(t, p.ID, events[0].Resource)
}

// TestPurpose: Validates template-request creation defaults.
// Scope: Unit Test
// Expected: DRAFT with zero estimated creatives regardless of input.
// Test Case ID: PRJ-03
func TestService_Create_TemplateCreation(t *testing.T) {
	svc, _ := newFixture(t)

	p, err := svc.Create(context.Background(), client1, project.CreateInput{
		Name:               "New layout",
		BrandID:            "brand-1",
		Type:               project.TypeTemplateCreation,
		EstimatedCreatives: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, project.StatusDraft, p.Status)
	assert.Equal(t, 0, p.EstimatedCreatives)
	assert.Nil(t, p.TemplateID)
}

// TestPurpose: Validates creation failures and that none of them leave state behind.
// Scope: Unit Test
// Security: Brand ownership enforcement
// Expected: Validation for bad input and unusable templates, Forbidden for foreign brands, no project and no activity.
// Test Case ID: PRJ-04
func TestService_Create_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		actor *identity.Identity
		in    project.CreateInput
		kind  apperr.Kind
	}{
		{"no identity", nil, project.CreateInput{Name: "x", BrandID: "brand-1", Type: project.TypeTemplateCreation}, apperr.KindUnauthenticated},
		{"blank name", client1, project.CreateInput{Name: "  ", BrandID: "brand-1", Type: project.TypeTemplateCreation}, apperr.KindValidation},
		{"bad type", client1, project.CreateInput{Name: "x", BrandID: "brand-1", Type: "POSTER"}, apperr.KindValidation},
		{"negative estimate", client1, project.CreateInput{Name: "x", BrandID: "brand-1", Type: project.TypeTemplateCreation, EstimatedCreatives: -1}, apperr.KindValidation},
		{"estimate above bound", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "tpl-ok", Type: project.TypeCampaign,
			EstimatedCreatives: 3_000_000_000}, apperr.KindValidation},
		{"deliverables overflow", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "tpl-ok", Type: project.TypeCampaign,
			Deliverables: []project.Deliverable{
				{Platform: project.PlatformInstagram, Format: project.FormatFeed, Quantity: math.MaxInt},
				{Platform: project.PlatformTikTok, Format: project.FormatReels, Quantity: 2},
			}}, apperr.KindValidation},
		{"deliverables total above bound", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "tpl-ok", Type: project.TypeCampaign,
			Deliverables: []project.Deliverable{
				{Platform: project.PlatformInstagram, Format: project.FormatFeed, Quantity: project.MaxEstimatedCreatives},
				{Platform: project.PlatformTikTok, Format: project.FormatReels, Quantity: 1},
			}}, apperr.KindValidation},
		{"bad deliverable", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "tpl-ok", Type: project.TypeCampaign,
			Deliverables: []project.Deliverable{{Platform: "FAX", Format: project.FormatFeed, Quantity: 1}}}, apperr.KindValidation},
		{"missing brand", client1, project.CreateInput{Name: "x", BrandID: "nope", Type: project.TypeTemplateCreation}, apperr.KindValidation},
		{"foreign brand", client2, project.CreateInput{Name: "x", BrandID: "brand-1", Type: project.TypeTemplateCreation}, apperr.KindForbidden},
		{"campaign without template", client1, project.CreateInput{Name: "x", BrandID: "brand-1", Type: project.TypeCampaign}, apperr.KindValidation},
		{"missing template", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "nope", Type: project.TypeCampaign}, apperr.KindValidation},
		{"pending template", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "tpl-pending", Type: project.TypeCampaign}, apperr.KindValidation},
		{"inactive template", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "tpl-inactive", Type: project.TypeCampaign}, apperr.KindValidation},
		{"template of other brand", client1, project.CreateInput{Name: "x", BrandID: "brand-1", TemplateID: "tpl-other", Type: project.TypeCampaign}, apperr.KindValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newFixture(t)
			p, err := svc.Create(context.Background(), tc.actor, tc.in)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Nil(t, p)
			assert.Empty(t, store.Events())
		})
	}
}

// TestPurpose: Validates that admins may move a project between any two states.
// Scope: Unit Test
// Expected: All 25 (from, to) pairs succeed, each recorded with from/to metadata and a bumped version.
// Test Case ID: PRJ-05
func TestService_AdminSetStatus_AnyToAny(t *testing.T) {
	for _, from := range project.Statuses {
		for _, to := range project.Statuses {
			t.Run(fmt.Sprintf("%s->%s", from, to), func(t *testing.T) {
				svc, store := newFixture(t)
				store.AddProject(project.Project{ID: "p1", BrandID: "brand-1", Status: from})

				p, err := svc.AdminSetStatus(context.Background(), admin, "p1", to)
				require.NoError(t, err)
				assert.Equal(t, to, p.Status)
				assert.Equal(t, int64(2), p.Version)

				stored, _ := store.Project("p1")
				assert.Equal(t, to, stored.Status)

				events := store.Events()
				require.Len(t, events, 1)
				assert.Equal(t, audit.TypeProjectStatusUpdated, events[0].Type)
				assert.Equal(t, string(from), events[0].Metadata["from"])
				assert.Equal(t, string(to), events[0].Metadata["to"])
			})
		}
	}
}

// TestPurpose: Validates admin override preconditions.
// Scope: Unit Test
// Security: Role enforcement
// Expected: Clients are Forbidden, unknown targets are Validation, missing projects are NotFound; nothing is written.
// Test Case ID: PRJ-06
func TestService_AdminSetStatus_Rejections(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "p1", BrandID: "brand-1", Status: project.StatusDraft})
	ctx := context.Background()

	_, err := svc.AdminSetStatus(ctx, client1, "p1", project.StatusReady)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = svc.AdminSetStatus(ctx, admin, "p1", "ARCHIVED")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.AdminSetStatus(ctx, admin, "missing", project.StatusReady)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	stored, _ := store.Project("p1")
	assert.Equal(t, project.StatusDraft, stored.Status)
	assert.Empty(t, store.Events())
}

// TestPurpose: Validates client approval of a READY project.
// Scope: Unit Test
// Expected: APPROVED with one project_approved activity.
// Test Case ID: PRJ-07
func TestService_Approve(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "p1", BrandID: "brand-1", Status: project.StatusReady})

	p, err := svc.Approve(context.Background(), client1, "p1")
	require.NoError(t, err)
	assert.Equal(t, project.StatusApproved, p.Status)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.TypeProjectApproved, events[0].Type)
	assert.Equal(t, "client-1", events[0].ActorID)
}

// TestPurpose: Validates that approval from a foreign organization is rejected (Scenario E).
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: Forbidden, status unchanged, no activity.
// Test Case ID: PRJ-08
func TestService_Approve_ForeignOrganization(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "p2", BrandID: "brand-2", Status: project.StatusReady})

	_, err := svc.Approve(context.Background(), client1, "p2")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	stored, _ := store.Project("p2")
	assert.Equal(t, project.StatusReady, stored.Status)
	assert.Empty(t, store.Events())
}

// TestPurpose: Validates approval guards.
// Scope: Unit Test
// Expected: Admins are Forbidden; every non-READY state is InvalidState.
// Test Case ID: PRJ-09
func TestService_Approve_Guards(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "ready", BrandID: "brand-1", Status: project.StatusReady})

	_, err := svc.Approve(context.Background(), admin, "ready")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	for _, st := range project.Statuses {
		if st == project.StatusReady {
			continue
		}
		store.AddProject(project.Project{ID: string(st), BrandID: "brand-1", Status: st})
		_, err := svc.Approve(context.Background(), client1, string(st))
		assert.Equal(t, apperr.KindInvalidState, apperr.KindOf(err), "from %s", st)
		stored, _ := store.Project(string(st))
		assert.Equal(t, st, stored.Status)
	}
	assert.Empty(t, store.Events())
}

// TestPurpose: Validates optimistic concurrency on status writes.
// Scope: Unit Test
// Expected: A write racing a committed change fails with Conflict and leaves the winner's status in place.
// Test Case ID: PRJ-10
func TestService_StatusWrite_Conflict(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "p1", BrandID: "brand-1", Status: project.StatusReady})
	store.BeforeUpdateStatus = func(id string) {
		store.BeforeUpdateStatus = nil
		store.SetStatus(id, project.StatusInProduction)
	}

	_, err := svc.Approve(context.Background(), client1, "p1")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	stored, _ := store.Project("p1")
	assert.Equal(t, project.StatusInProduction, stored.Status)
	assert.Empty(t, store.Events())
}

// TestPurpose: Validates atomicity of the state write and its activity entry.
// Scope: Unit Test
// Expected: When the activity write fails the status change is rolled back and the error is UpstreamUnavailable.
// Test Case ID: PRJ-11
func TestService_ActivityFailureRollsBack(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "p1", BrandID: "brand-1", Status: project.StatusDraft})
	store.FailRecord = errors.New("disk full")

	_, err := svc.AdminSetStatus(context.Background(), admin, "p1", project.StatusReady)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))

	stored, _ := store.Project("p1")
	assert.Equal(t, project.StatusDraft, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

// TestPurpose: Validates tenant-scoped reads.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: Clients only see their organizations' projects; admins see all.
// Test Case ID: PRJ-12
func TestService_GetAndList(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "a", BrandID: "brand-1", Status: project.StatusReady})
	store.AddProject(project.Project{ID: "b", BrandID: "brand-2", Status: project.StatusDraft})
	store.AddCreative(project.Creative{ID: "c1", ProjectID: "a", Name: "hero"})
	ctx := context.Background()

	p, err := svc.Get(ctx, client1, "a")
	require.NoError(t, err)
	assert.Len(t, p.Creatives, 1)

	_, err = svc.Get(ctx, client1, "b")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	list, err := svc.List(ctx, client1, project.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)

	list, err = svc.List(ctx, admin, project.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = svc.List(ctx, admin, project.ListFilter{Status: project.StatusDraft})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)

	orphan := &identity.Identity{UserID: "c", Role: identity.RoleClient}
	list, err = svc.List(ctx, orphan, project.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.List(ctx, admin, project.ListFilter{Status: "ARCHIVED"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// TestPurpose: Validates manual commentary.
// Scope: Unit Test
// Expected: Comment appended with comment_added activity and no status change; blank or foreign comments are rejected.
// Test Case ID: PRJ-13
func TestService_AddComment(t *testing.T) {
	svc, store := newFixture(t)
	store.AddProject(project.Project{ID: "a", BrandID: "brand-1", Status: project.StatusInProduction})
	ctx := context.Background()

	c, err := svc.AddComment(ctx, client1, "a", "  looks great  ")
	require.NoError(t, err)
	assert.Equal(t, "looks great", c.Content)
	assert.Len(t, store.Comments("a"), 1)

	_, err = svc.AddComment(ctx, client1, "a", "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.AddComment(ctx, client2, "a", "sneaky")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	stored, _ := store.Project("a")
	assert.Equal(t, project.StatusInProduction, stored.Status)
	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.TypeCommentAdded, events[0].Type)
}
