package billing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/tally/pkg/clock"
	"github.com/quillback/tally/pkg/observability"
	"github.com/quillback/tally/pkg/plans"
	"github.com/quillback/tally/pkg/teams"
)

type fakePlans struct {
	plans map[int64]*plans.Plan
}

func (f *fakePlans) GetPlan(_ context.Context, id int64) (*plans.Plan, error) {
	plan, ok := f.plans[id]
	if !ok {
		return nil, plans.ErrPlanNotFound
	}
	return plan, nil
}

func (f *fakePlans) ListPlans(_ context.Context) ([]*plans.Plan, error) {
	return nil, nil
}

func (f *fakePlans) CreatePlan(_ context.Context, _ *plans.CreatePlanRequest) (*plans.Plan, error) {
	return nil, nil
}

func (f *fakePlans) UpdatePlan(_ context.Context, _ int64, _ *plans.UpdatePlanRequest) (*plans.Plan, error) {
	return nil, nil
}

type fakeTeams struct {
	teams   map[int64]*teams.Team
	byOwner map[int64]*teams.Team
}

func (f *fakeTeams) CreateTeam(_ context.Context, _ int64, _ *teams.CreateTeamRequest) (*teams.Team, error) {
	return nil, nil
}

func (f *fakeTeams) GetTeam(_ context.Context, id int64) (*teams.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, teams.ErrTeamNotFound
	}
	return team, nil
}

func (f *fakeTeams) GetTeamByOwner(_ context.Context, ownerID int64) (*teams.Team, error) {
	team, ok := f.byOwner[ownerID]
	if !ok {
		return nil, teams.ErrTeamNotFound
	}
	return team, nil
}

func (f *fakeTeams) UpdateTeam(_ context.Context, _ int64, _ *teams.UpdateTeamRequest) (*teams.Team, error) {
	return nil, nil
}

func (f *fakeTeams) DeleteTeam(_ context.Context, _ int64) error { return nil }

func (f *fakeTeams) TeamOwner(_ context.Context, teamID int64) (int64, error) {
	team, ok := f.teams[teamID]
	if !ok {
		return 0, teams.ErrTeamNotFound
	}
	return team.OwnerID, nil
}

type fixture struct {
	svc   *PostgresService
	mock  sqlmock.Sqlmock
	clock *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	planSvc := &fakePlans{plans: map[int64]*plans.Plan{
		1: {ID: 1, Name: "pro", Price: decimal.NewFromInt(400)},
		2: {ID: 2, Name: "max", Price: decimal.NewFromInt(900)},
	}}
	team := &teams.Team{ID: 42, Name: "acme", OwnerID: 7}
	teamSvc := &fakeTeams{
		teams:   map[int64]*teams.Team{42: team},
		byOwner: map[int64]*teams.Team{7: team},
	}

	clk := clock.NewFake(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	return &fixture{
		svc:   NewPostgresService(db, planSvc, teamSvc, clk, 31, logger, nil),
		mock:  mock,
		clock: clk,
	}
}

func userExistsRows(exists bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(exists)
}

func subscriptionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "team_id", "plan_id", "price", "status", "is_active", "created_at", "updated_at",
	})
}

func TestCreate(t *testing.T) {
	t.Run("creates pending subscription with price snapshot", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()

		f.mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(7)).WillReturnRows(userExistsRows(true))
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT id FROM subscriptions").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		f.mock.ExpectQuery("INSERT INTO subscriptions").
			WithArgs(int64(7), int64(42), int64(1), decimal.NewFromInt(400), StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(100), now, now))
		f.mock.ExpectCommit()

		sub, err := f.svc.Create(context.Background(), 7, 42, 1)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, sub.Status)
		assert.False(t, sub.IsActive)
		assert.True(t, sub.Price.Equal(decimal.NewFromInt(400)))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("live subscription blocks a second create", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(7)).WillReturnRows(userExistsRows(true))
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT id FROM subscriptions").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(100)))
		f.mock.ExpectRollback()

		_, err := f.svc.Create(context.Background(), 7, 42, 1)
		assert.ErrorIs(t, err, ErrSubscriptionExists)
		assert.EqualError(t, err, "SUBSCRIPTION_ALREADY_EXISTS")
	})

	t.Run("racing create loses to the unique index", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(7)).WillReturnRows(userExistsRows(true))
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT id FROM subscriptions").
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		f.mock.ExpectQuery("INSERT INTO subscriptions").
			WillReturnError(&pq.Error{Code: "23505"})
		f.mock.ExpectRollback()

		_, err := f.svc.Create(context.Background(), 7, 42, 1)
		assert.ErrorIs(t, err, ErrSubscriptionExists)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(99)).WillReturnRows(userExistsRows(false))

		_, err := f.svc.Create(context.Background(), 99, 42, 1)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("unknown team", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(7)).WillReturnRows(userExistsRows(true))

		_, err := f.svc.Create(context.Background(), 7, 99, 1)
		assert.ErrorIs(t, err, teams.ErrTeamNotFound)
	})

	t.Run("unknown plan", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT EXISTS").WithArgs(int64(7)).WillReturnRows(userExistsRows(true))

		_, err := f.svc.Create(context.Background(), 7, 42, 99)
		assert.ErrorIs(t, err, plans.ErrPlanNotFound)
	})
}

func TestGet(t *testing.T) {
	t.Run("returns subscription by id", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(100)).
			WillReturnRows(subscriptionRows().
				AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusPending), false, now, now))

		sub, err := f.svc.Get(context.Background(), 100)
		require.NoError(t, err)
		assert.Equal(t, int64(42), sub.TeamID)
		assert.Equal(t, StatusPending, sub.Status)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(999)).
			WillReturnRows(subscriptionRows())

		_, err := f.svc.Get(context.Background(), 999)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestActivate(t *testing.T) {
	window := Window{
		ActivationDate: time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
		ExpirationDate: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC),
	}

	t.Run("activates pending subscription", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT status FROM subscriptions").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(StatusPending)))
		f.mock.ExpectQuery("INSERT INTO subscription_activations").
			WithArgs(int64(100), window.ActivationDate, window.ExpirationDate).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
		f.mock.ExpectExec("UPDATE subscriptions").
			WithArgs(int64(100), StatusActive).
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		activation, err := f.svc.Activate(context.Background(), 100, window)
		require.NoError(t, err)
		assert.Equal(t, window.ExpirationDate, activation.ExpirationDate)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("re-activates expired subscription", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT status FROM subscriptions").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(StatusExpired)))
		f.mock.ExpectQuery("INSERT INTO subscription_activations").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), now))
		f.mock.ExpectExec("UPDATE subscriptions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		_, err := f.svc.Activate(context.Background(), 100, window)
		assert.NoError(t, err)
	})

	t.Run("double activation rejected", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT status FROM subscriptions").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(StatusActive)))
		f.mock.ExpectRollback()

		_, err := f.svc.Activate(context.Background(), 100, window)
		assert.ErrorIs(t, err, ErrAlreadyActive)
	})

	t.Run("canceled subscription cannot activate", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT status FROM subscriptions").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(StatusCanceled)))
		f.mock.ExpectRollback()

		_, err := f.svc.Activate(context.Background(), 100, window)
		assert.ErrorIs(t, err, ErrSubscriptionCanceled)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT status FROM subscriptions").
			WithArgs(int64(999)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}))
		f.mock.ExpectRollback()

		_, err := f.svc.Activate(context.Background(), 999, window)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})

	t.Run("inverted window rejected", func(t *testing.T) {
		f := newFixture(t)

		bad := Window{
			ActivationDate: window.ExpirationDate,
			ExpirationDate: window.ActivationDate,
		}
		_, err := f.svc.Activate(context.Background(), 100, bad)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("zero window gets the default term", func(t *testing.T) {
		f := newFixture(t)
		now := f.clock.Now()

		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT status FROM subscriptions").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(StatusPending)))
		f.mock.ExpectQuery("INSERT INTO subscription_activations").
			WithArgs(int64(100), now, now.AddDate(0, 0, 31)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), time.Now()))
		f.mock.ExpectExec("UPDATE subscriptions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		f.mock.ExpectCommit()

		activation, err := f.svc.Activate(context.Background(), 100, Window{})
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, 31), activation.ExpirationDate)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestGetCurrent(t *testing.T) {
	activationCols := []string{"id", "subscription_id", "activation_date", "expiration_date", "created_at"}

	t.Run("returns active subscription with window", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()
		start := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(42), StatusActive).
			WillReturnRows(subscriptionRows().
				AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusActive), true, now, now))
		f.mock.ExpectQuery("SELECT id, subscription_id").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows(activationCols).
				AddRow(int64(1), int64(100), start, end, now))

		current, err := f.svc.GetCurrent(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(100), current.Subscription.ID)
		assert.Equal(t, end, current.Window.ExpirationDate)
	})

	t.Run("overdue subscription is expired on read", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()
		start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) // before the fake clock's May 20

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(42), StatusActive).
			WillReturnRows(subscriptionRows().
				AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusActive), true, now, now))
		f.mock.ExpectQuery("SELECT id, subscription_id").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows(activationCols).
				AddRow(int64(1), int64(100), start, end, now))
		f.mock.ExpectExec("UPDATE subscriptions").
			WithArgs(int64(100), StatusExpired).
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := f.svc.GetCurrent(context.Background(), 7)
		assert.ErrorIs(t, err, ErrSubscriptionEnded)
		assert.EqualError(t, err, "subscription has ended")
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("user without team", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.GetCurrent(context.Background(), 99)
		assert.ErrorIs(t, err, ErrNoActiveSubscription)
	})

	t.Run("team without active subscription", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(42), StatusActive).
			WillReturnRows(subscriptionRows())

		_, err := f.svc.GetCurrent(context.Background(), 7)
		assert.ErrorIs(t, err, ErrNoActiveSubscription)
	})

	t.Run("active subscription without activation record is an internal error", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(42), StatusActive).
			WillReturnRows(subscriptionRows().
				AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusActive), true, now, now))
		f.mock.ExpectQuery("SELECT id, subscription_id").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows(activationCols))

		_, err := f.svc.GetCurrent(context.Background(), 7)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotActivated)
		assert.NotErrorIs(t, err, ErrNoActiveSubscription)
	})
}

func TestCancel(t *testing.T) {
	t.Run("cancels live subscription", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectExec("UPDATE subscriptions").
			WithArgs(int64(42), StatusCanceled).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, f.svc.Cancel(context.Background(), 42))
	})

	t.Run("nothing to cancel", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectExec("UPDATE subscriptions").
			WithArgs(int64(42), StatusCanceled).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := f.svc.Cancel(context.Background(), 42)
		assert.ErrorIs(t, err, ErrSubscriptionNotFound)
	})
}

func TestListActive(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery("SELECT id, user_id, team_id").
		WillReturnRows(subscriptionRows().
			AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusActive), true, now, now).
			AddRow(int64(101), int64(8), int64(43), int64(2), "900", string(StatusActive), true, now, now))

	subs, err := f.svc.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestListHistory(t *testing.T) {
	f := newFixture(t)
	now := time.Now()

	f.mock.ExpectQuery("SELECT id, user_id, team_id").
		WithArgs(int64(7)).
		WillReturnRows(subscriptionRows().
			AddRow(int64(101), int64(7), int64(42), int64(2), "900", string(StatusPending), false, now, now).
			AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusCanceled), false, now, now))

	subs, err := f.svc.ListHistory(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, StatusCanceled, subs[1].Status)
}

func TestProrateUpgrade(t *testing.T) {
	activationCols := []string{"id", "subscription_id", "activation_date", "expiration_date", "created_at"}

	t.Run("quotes the reference upgrade", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()
		start := time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(42), StatusActive).
			WillReturnRows(subscriptionRows().
				AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusActive), true, now, now))
		f.mock.ExpectQuery("SELECT id, subscription_id").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows(activationCols).
				AddRow(int64(1), int64(100), start, end, now))

		proration, err := f.svc.ProrateUpgrade(context.Background(), 7, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(16), proration.RemainingDays)
		assert.Equal(t, int64(31), proration.TotalDays)
		assert.True(t, proration.ProratedPrice.Equal(decimal.RequireFromString("258.06")),
			"got %s", proration.ProratedPrice)
	})

	t.Run("no active subscription", func(t *testing.T) {
		f := newFixture(t)

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(42), StatusActive).
			WillReturnRows(subscriptionRows())

		_, err := f.svc.ProrateUpgrade(context.Background(), 7, 2)
		assert.ErrorIs(t, err, ErrNoActiveSubscription)
	})

	t.Run("never activated", func(t *testing.T) {
		f := newFixture(t)
		now := time.Now()

		f.mock.ExpectQuery("SELECT id, user_id, team_id").
			WithArgs(int64(42), StatusActive).
			WillReturnRows(subscriptionRows().
				AddRow(int64(100), int64(7), int64(42), int64(1), "400", string(StatusActive), true, now, now))
		f.mock.ExpectQuery("SELECT id, subscription_id").
			WithArgs(int64(100)).
			WillReturnRows(sqlmock.NewRows(activationCols))

		_, err := f.svc.ProrateUpgrade(context.Background(), 7, 2)
		assert.ErrorIs(t, err, ErrNotActivated)
	})
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectExec("UPDATE subscriptions").
		WithArgs(StatusExpired, StatusActive, f.clock.Now()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	flipped, err := f.svc.ExpireOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), flipped)
}
