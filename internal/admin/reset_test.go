package admin

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDB struct {
	statements []string
	failOn     string
}

func (d *recordingDB) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	d.statements = append(d.statements, sql)
	if d.failOn != "" && strings.Contains(sql, d.failOn) {
		return pgconn.CommandTag{}, assert.AnError
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (d *recordingDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, nil
}

func (d *recordingDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func TestResetAll(t *testing.T) {
	db := &recordingDB{}
	r := &Resetter{DB: db}

	require.NoError(t, r.ResetAll(context.Background()))
	assert.Equal(t, []string{
		"DELETE FROM import_state",
		"TRUNCATE TABLE import_log RESTART IDENTITY CASCADE",
		"TRUNCATE TABLE post_terms RESTART IDENTITY CASCADE",
		"TRUNCATE TABLE terms RESTART IDENTITY CASCADE",
		"TRUNCATE TABLE assets RESTART IDENTITY CASCADE",
		"TRUNCATE TABLE posts RESTART IDENTITY CASCADE",
	}, db.statements)
}

func TestResetAll_StopsAtFirstError(t *testing.T) {
	db := &recordingDB{failOn: "terms"}
	r := &Resetter{DB: db}

	err := r.ResetAll(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "reset post_terms")
	assert.Len(t, db.statements, 3)
}

func TestResetState(t *testing.T) {
	db := &recordingDB{}
	require.NoError(t, (&Resetter{DB: db}).ResetState(context.Background()))
	assert.Equal(t, []string{"DELETE FROM import_state"}, db.statements)
}
