package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/quillback/tally/pkg/auth"
	"github.com/quillback/tally/pkg/billing"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/plans"
	"github.com/quillback/tally/pkg/teams"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// ownershipMap satisfies auth.TeamOwnership from a fixed table
type ownershipMap map[int64]int64

func (m ownershipMap) TeamOwner(_ context.Context, teamID int64) (int64, error) {
	owner, ok := m[teamID]
	if !ok {
		return 0, teams.ErrTeamNotFound
	}
	return owner, nil
}

type stubPlans struct {
	plans.Service

	plan    *plans.Plan
	catalog []*plans.Plan
	err     error

	createdReq *plans.CreatePlanRequest
	updatedID  int64
}

func (s *stubPlans) CreatePlan(_ context.Context, req *plans.CreatePlanRequest) (*plans.Plan, error) {
	s.createdReq = req
	return s.plan, s.err
}

func (s *stubPlans) UpdatePlan(_ context.Context, id int64, _ *plans.UpdatePlanRequest) (*plans.Plan, error) {
	s.updatedID = id
	return s.plan, s.err
}

func (s *stubPlans) GetPlan(_ context.Context, _ int64) (*plans.Plan, error) {
	return s.plan, s.err
}

func (s *stubPlans) ListPlans(_ context.Context) ([]*plans.Plan, error) {
	return s.catalog, s.err
}

type stubTeams struct {
	teams.Service

	team *teams.Team
	err  error
}

func (s *stubTeams) CreateTeam(_ context.Context, _ int64, _ *teams.CreateTeamRequest) (*teams.Team, error) {
	return s.team, s.err
}

func (s *stubTeams) GetTeam(_ context.Context, _ int64) (*teams.Team, error) {
	return s.team, s.err
}

func (s *stubTeams) GetTeamByOwner(_ context.Context, _ int64) (*teams.Team, error) {
	return s.team, s.err
}

func (s *stubTeams) UpdateTeam(_ context.Context, _ int64, _ *teams.UpdateTeamRequest) (*teams.Team, error) {
	return s.team, s.err
}

func (s *stubTeams) DeleteTeam(_ context.Context, _ int64) error {
	return s.err
}

type stubBilling struct {
	billing.Service

	sub        *billing.Subscription
	current    *billing.CurrentSubscription
	activation *billing.Activation
	proration  *billing.Proration
	subs       []*billing.Subscription
	err        error

	canceledTeam int64
}

func (s *stubBilling) Create(_ context.Context, _, _, _ int64) (*billing.Subscription, error) {
	return s.sub, s.err
}

func (s *stubBilling) Get(_ context.Context, _ int64) (*billing.Subscription, error) {
	if s.sub == nil {
		return nil, billing.ErrSubscriptionNotFound
	}
	return s.sub, nil
}

func (s *stubBilling) Activate(_ context.Context, _ int64, _ billing.Window) (*billing.Activation, error) {
	return s.activation, s.err
}

func (s *stubBilling) GetCurrent(_ context.Context, _ int64) (*billing.CurrentSubscription, error) {
	return s.current, s.err
}

func (s *stubBilling) Cancel(_ context.Context, teamID int64) error {
	s.canceledTeam = teamID
	return s.err
}

func (s *stubBilling) ListActive(_ context.Context) ([]*billing.Subscription, error) {
	return s.subs, s.err
}

func (s *stubBilling) ListHistory(_ context.Context, _ int64) ([]*billing.Subscription, error) {
	return s.subs, s.err
}

func (s *stubBilling) ProrateUpgrade(_ context.Context, _, _ int64) (*billing.Proration, error) {
	return s.proration, s.err
}

func (s *stubBilling) ListActivations(_ context.Context, _ int64) ([]*billing.Activation, error) {
	if s.activation == nil {
		return []*billing.Activation{}, s.err
	}
	return []*billing.Activation{s.activation}, s.err
}

func testGuard(owners ownershipMap) *auth.Guard {
	return auth.NewGuard(owners)
}

// doRequest routes a request through a fresh router with the caller
// already on the context, skipping the token middleware.
func doRequest(t *testing.T, register func(*mux.Router), method, path, body string, caller *auth.Caller) *httptest.ResponseRecorder {
	t.Helper()

	router := mux.NewRouter()
	register(router)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if caller != nil {
		req = req.WithContext(auth.WithCaller(req.Context(), caller))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func testPlan(id int64, name string, price int64) *plans.Plan {
	return &plans.Plan{ID: id, Name: name, Price: decimal.NewFromInt(price)}
}

var (
	adminCaller = &auth.Caller{UserID: 1, IsAdmin: true}
	ownerCaller = &auth.Caller{UserID: 7}
	otherCaller = &auth.Caller{UserID: 8}
)

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("got status %d, want %d, body: %s", rec.Code, want, rec.Body.String())
	}
}

var _ http.Handler = (*Server)(nil)
