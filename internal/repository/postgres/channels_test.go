package postgres

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emitkithq/emitkit/internal/repository"
)

type recordedCall struct {
	sql  string
	args []any
}

// fakeQuerier records statements and answers queries with canned rows
type fakeQuerier struct {
	execs   []recordedCall
	queries []recordedCall
	rows    [][]any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, recordedCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, recordedCall{sql: sql, args: args})
	return &fakeRows{data: f.rows, pos: -1}, nil
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func (f *fakeQuerier) Begin(context.Context) (pgx.Tx, error) {
	panic("unexpected Begin")
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	for i, v := range r.data[r.pos] {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func channelRow(id, name string) []any {
	return []any{id, "prj_1", "org_1", name, "", "", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), (*time.Time)(nil)}
}

func TestChannelRepository_GetOrCreateMany_TwoStatements(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{
		channelRow("channel_1", "deploys"),
		channelRow("channel_2", "signups"),
	}}
	repo := NewChannelRepository(q)

	channels, err := repo.GetOrCreateMany(context.Background(), "org_1", "prj_1", []repository.ChannelSpec{
		{Name: "deploys", Icon: "🚀"},
		{Name: "signups"},
		{Name: "deploys", Icon: "ignored"},
	})

	require.NoError(t, err)
	require.Len(t, q.execs, 1)
	require.Len(t, q.queries, 1)

	insert := q.execs[0]
	assert.Contains(t, insert.sql, "unnest(")
	assert.Contains(t, insert.sql, "ON CONFLICT (project_id, name) WHERE deleted_at IS NULL DO NOTHING")
	assert.Equal(t, "prj_1", insert.args[0])
	assert.Equal(t, "org_1", insert.args[1])
	assert.Len(t, insert.args[2], 2)
	assert.Equal(t, []string{"deploys", "signups"}, insert.args[3])
	assert.Equal(t, []string{"🚀", ""}, insert.args[4])

	assert.Contains(t, q.queries[0].sql, "name = ANY($2)")
	assert.Equal(t, []string{"deploys", "signups"}, q.queries[0].args[1])

	require.Len(t, channels, 2)
	assert.Equal(t, "channel_1", channels["deploys"].ID)
	assert.Equal(t, "channel_2", channels["signups"].ID)
}

func TestChannelRepository_GetOrCreateMany_MissingRow(t *testing.T) {
	q := &fakeQuerier{rows: [][]any{channelRow("channel_1", "deploys")}}
	repo := NewChannelRepository(q)

	_, err := repo.GetOrCreateMany(context.Background(), "org_1", "prj_1", []repository.ChannelSpec{
		{Name: "deploys"},
		{Name: "signups"},
	})

	assert.ErrorIs(t, err, repository.ErrChannelNotFound)
}

func TestChannelRepository_GetOrCreateMany_Empty(t *testing.T) {
	q := &fakeQuerier{}
	repo := NewChannelRepository(q)

	channels, err := repo.GetOrCreateMany(context.Background(), "org_1", "prj_1", nil)

	require.NoError(t, err)
	assert.Empty(t, channels)
	assert.Empty(t, q.execs)
	assert.Empty(t, q.queries)
}
