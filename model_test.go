package sqlcompose_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqlcompose"
	"github.com/pthm/sqlcompose/internal/testutil"
	"github.com/pthm/sqlcompose/pkg/clause"
	"github.com/pthm/sqlcompose/pkg/dialect"
	"github.com/pthm/sqlcompose/pkg/materialize"
	"github.com/pthm/sqlcompose/pkg/search"
)

const teamJoin = "LEFT JOIN `teams` AS `team` ON `team`.`id` = `users`.`team_id`"

func usersModel(t *testing.T, opts ...sqlcompose.Option) *sqlcompose.Model {
	t.Helper()
	opts = append([]sqlcompose.Option{sqlcompose.WithDialect(dialect.SQLite{})}, opts...)
	m, err := sqlcompose.NewModel("users", clause.Set{
		Select: "SELECT `users`.`id` AS `id`, `users`.`name` AS `name`" +
			", `team`.`id` AS `team.id`, `team`.`name` AS `team.name`" +
			", `users`.`settings` AS `JSON:settings`",
		Join:  teamJoin,
		Where: "WHERE `users`.`active` = TRUE",
		Order: "ORDER BY `users`.`id` ASC",
	}, opts...)
	require.NoError(t, err)
	return m
}

func usersRegistry() *search.Registry {
	return search.NewRegistry().
		RegisterFunc("starts_with", func(any) search.Contribution {
			return search.Contribution{
				Where:     "AND `users`.`name` LIKE :starts_with",
				Normalize: func(v any) any { return fmt.Sprint(v) + "%" },
			}
		}).
		RegisterFunc("team_color", func(any) search.Contribution {
			return search.Contribution{
				Join:  teamJoin,
				Where: "AND `team`.`color` = :team_color",
			}
		})
}

// recordingQuerier counts and records the statements sent to the database.
type recordingQuerier struct {
	db *sql.DB

	mu         sync.Mutex
	statements []string
	rowCalls   int
}

func (r *recordingQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	r.mu.Lock()
	r.statements = append(r.statements, query)
	r.rowCalls++
	r.mu.Unlock()
	return r.db.QueryRowContext(ctx, query, args...)
}

func (r *recordingQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	r.mu.Lock()
	r.statements = append(r.statements, query)
	r.mu.Unlock()
	return r.db.QueryContext(ctx, query, args...)
}

func TestNewModel_RequiresTable(t *testing.T) {
	m, err := sqlcompose.NewModel("", clause.Set{})
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, sqlcompose.IsTableRequiredErr(err))
}

func TestModel_Defaults(t *testing.T) {
	m, err := sqlcompose.NewModel("test", clause.Set{})
	require.NoError(t, err)

	assert.Equal(t, "test", m.Table())
	assert.Equal(t, "mysql", m.Dialect().Name())
	assert.Equal(t, "SELECT `test`.*\nFROM `test`\n\nWHERE 1\n\n", m.Compose(clause.Set{}))

	pg, err := sqlcompose.NewModel("test", clause.Set{}, sqlcompose.WithDialect(dialect.Postgres{}))
	require.NoError(t, err)
	assert.Equal(t, clause.Set{Select: `SELECT "test".*`, From: `FROM "test"`, Where: "WHERE TRUE"}, pg.Base())
}

func TestModel_Prepare(t *testing.T) {
	m, err := sqlcompose.NewModel("users", clause.Set{})
	require.NoError(t, err)
	reg := search.NewRegistry().RegisterFunc("starts_with", func(any) search.Contribution {
		return search.Contribution{
			Where:     "AND `users`.`name` LIKE :starts_with",
			Normalize: func(v any) any { return strings.ToUpper(fmt.Sprint(v)) + "%" },
		}
	})

	p, err := m.Prepare(reg, search.Params{"starts_with": "ab", "page": 2, "limit": 10, "ignored": 1})
	require.NoError(t, err)

	stmt := "SELECT `users`.*\nFROM `users`\n\nWHERE 1\nAND `users`.`name` LIKE 'AB%'\n\n"
	assert.Equal(t, search.Params{"starts_with": "AB%", "page": 2, "limit": 10, "offset": 10}, p.Params)
	assert.Equal(t, stmt+" LIMIT 10, 10", p.SQL)
	assert.Equal(t, "SELECT COUNT(*) AS `count` FROM ("+stmt+") AS `temp`", p.CountSQL)
}

func TestModel_Search(t *testing.T) {
	db := testutil.SQLite(t)
	m := usersModel(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		raw       search.Params
		wantCount int64
		wantNames []string
	}{
		{
			name:      "no filters",
			raw:       nil,
			wantCount: 4,
			wantNames: []string{"Abby", "Abner", "Bob", "Carla"},
		},
		{
			name:      "prefix first page",
			raw:       search.Params{"starts_with": "ab", "limit": 1},
			wantCount: 2,
			wantNames: []string{"Abby"},
		},
		{
			name:      "prefix second page",
			raw:       search.Params{"starts_with": "ab", "page": 2, "limit": 1},
			wantCount: 2,
			wantNames: []string{"Abner"},
		},
		{
			name:      "page past the end",
			raw:       search.Params{"starts_with": "ab", "page": 9, "limit": 1},
			wantCount: 2,
			wantNames: nil,
		},
		{
			name:      "joined filter with repeated join",
			raw:       search.Params{"team_color": "blue"},
			wantCount: 2,
			wantNames: []string{"Abner", "Carla"},
		},
		{
			name:      "combined filters",
			raw:       search.Params{"team_color": "blue", "starts_with": "ab"},
			wantCount: 1,
			wantNames: []string{"Abner"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Search(ctx, db, usersRegistry(), tt.raw)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCount, res.Count)
			var names []string
			for _, row := range res.Rows {
				names = append(names, row["name"].(string))
			}
			assert.Equal(t, tt.wantNames, names)
			assert.NotContains(t, res.Params, "offset")
		})
	}
}

func TestModel_Search_Materializes(t *testing.T) {
	db := testutil.SQLite(t)
	m := usersModel(t)

	res, err := m.Search(context.Background(), db, usersRegistry(), search.Params{"page": "1", "limit": "3"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	assert.Equal(t, search.Params{"page": 1, "limit": 3}, res.Params)
	assert.Equal(t, materialize.Entity{
		"id":       int64(1),
		"name":     "Abby",
		"team":     map[string]any{"id": int64(1), "name": "Core"},
		"settings": map[string]any{"theme": "dark"},
	}, res.Rows[0])
	assert.Nil(t, res.Rows[1]["settings"])
	assert.Nil(t, res.Rows[2]["team"], "an unmatched LEFT JOIN must collapse to nil")
}

func TestModel_Filter(t *testing.T) {
	db := testutil.SQLite(t)
	m := usersModel(t)

	rows, err := m.Filter(context.Background(), db, usersRegistry(), search.Params{"starts_with": "ab", "limit": 1})
	require.NoError(t, err)
	assert.Len(t, rows, 2, "filter must ignore pagination")
}

func TestModel_Page(t *testing.T) {
	db := &recordingQuerier{db: testutil.SQLite(t)}
	m := usersModel(t)

	rows, err := m.Page(context.Background(), db, usersRegistry(), search.Params{"starts_with": "ab", "limit": 1})
	require.NoError(t, err)
	require.Len(t, rows, 1, "page must apply the limit")
	assert.Equal(t, "Abby", rows[0]["name"])

	require.Len(t, db.statements, 1, "page must not run the count query")
	assert.Contains(t, db.statements[0], "LIMIT")
	assert.Zero(t, db.rowCalls)
}

func TestModel_Get(t *testing.T) {
	db := testutil.SQLite(t)
	m := usersModel(t)
	ctx := context.Background()

	rows, err := m.Get(ctx, db, clause.Set{Where: "AND `users`.`team_id` = :team"}, map[string]any{"team": 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Abner", rows[0]["name"])

	rows, err = m.GetWhere(ctx, db, "AND `users`.`id` IN (:ids)", map[string]any{"ids": []int{1, 3}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[1]["name"])
}

func TestModel_GetOne(t *testing.T) {
	db := testutil.SQLite(t)
	m := usersModel(t)
	ctx := context.Background()

	row, err := m.GetOneWhere(ctx, db, "AND `users`.`id` = :id", map[string]any{"id": 5})
	require.NoError(t, err)
	assert.Equal(t, "Carla", row["name"])
	assert.Equal(t, map[string]any{"theme": "light", "beta": true}, row["settings"])

	row, err = m.GetOneWhere(ctx, db, "AND `users`.`id` = :id", map[string]any{"id": 4})
	require.Error(t, err)
	assert.Nil(t, row)
	assert.True(t, sqlcompose.IsNotFoundErr(err))
	assert.Contains(t, err.Error(), "`users`.`id` = 4")
}

func TestModel_GetWhereParams(t *testing.T) {
	db := testutil.SQLite(t)
	m := usersModel(t)
	ctx := context.Background()

	rows, err := m.GetWhereParams(ctx, db, map[string]any{"users.team_id": 1, "active": false}, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Abel", rows[0]["name"])

	rows, err = m.GetWhereParams(ctx, db, map[string]any{"team_id": nil}, "`name`")
	require.NoError(t, err)
	assert.Equal(t, []materialize.Entity{{"name": "Bob"}}, rows)
}

func TestModel_QueryError(t *testing.T) {
	db := testutil.SQLite(t)
	var logs bytes.Buffer
	m := usersModel(t, sqlcompose.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	_, err := m.GetWhere(context.Background(), db, "AND `users`.`missing` = 1", nil)
	require.Error(t, err)

	var qe *sqlcompose.QueryError
	require.ErrorAs(t, err, &qe)
	assert.True(t, sqlcompose.IsQueryErr(err))
	assert.Contains(t, qe.SQL, "`users`.`missing` = 1")
	assert.NotNil(t, errors.Unwrap(err))
	assert.Contains(t, logs.String(), "query failed")
}

func TestModel_JSONDecodeError(t *testing.T) {
	db := testutil.SQLite(t)
	m := usersModel(t)

	_, err := m.Get(context.Background(), db, clause.Set{Select: "'{broken' AS `JSON:broken`"}, nil)
	require.Error(t, err)
	assert.True(t, sqlcompose.IsJSONDecodeErr(err))
	assert.False(t, sqlcompose.IsQueryErr(err))
}

func TestModel_CountCache(t *testing.T) {
	db := testutil.SQLite(t)
	cache := sqlcompose.NewCountCache()
	m := usersModel(t, sqlcompose.WithCountCache(cache))
	q := &recordingQuerier{db: db}
	ctx := context.Background()

	first, err := m.Search(ctx, q, usersRegistry(), search.Params{"starts_with": "ab"})
	require.NoError(t, err)
	second, err := m.Search(ctx, q, usersRegistry(), search.Params{"starts_with": "ab", "page": 2})
	require.NoError(t, err)

	assert.Equal(t, int64(2), first.Count)
	assert.Equal(t, int64(2), second.Count)
	assert.Equal(t, 1, q.rowCalls, "the second count must be served from the cache")
	assert.Equal(t, 1, cache.Size())
}

func TestModel_NoCache(t *testing.T) {
	db := testutil.SQLite(t)
	cache := sqlcompose.NewCountCache()
	m := usersModel(t, sqlcompose.WithNoCache(), sqlcompose.WithCountCache(cache))
	q := &recordingQuerier{db: db}

	res, err := m.Search(context.Background(), q, usersRegistry(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Count)

	require.Len(t, q.statements, 2)
	for _, stmt := range q.statements {
		assert.Contains(t, stmt, " -- ")
	}
	assert.Equal(t, 0, cache.Size())
}

func TestModel_DebugLogging(t *testing.T) {
	db := testutil.SQLite(t)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := usersModel(t, sqlcompose.WithLogger(logger))

	_, err := m.Search(context.Background(), db, usersRegistry(), search.Params{"starts_with": "ab"})
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "msg=select")
	assert.Contains(t, out, "msg=count")
	assert.Contains(t, out, "table=users")
}
