package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstraint(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		wantKind ConstraintKind
		wantName string
		wantOK   bool
	}{
		{
			name:     "postgres unique",
			err:      &pq.Error{Code: "23505", Constraint: "users_email_key"},
			wantKind: ConstraintUnique,
			wantName: "users_email_key",
			wantOK:   true,
		},
		{
			name:     "postgres foreign key wrapped",
			err:      fmt.Errorf("exec: %w", &pq.Error{Code: "23503", Constraint: "posts_user_id_fkey"}),
			wantKind: ConstraintForeignKey,
			wantName: "posts_user_id_fkey",
			wantOK:   true,
		},
		{
			name:     "postgres not null",
			err:      &pq.Error{Code: "23502"},
			wantKind: ConstraintNotNull,
			wantOK:   true,
		},
		{
			name:   "postgres non-constraint code",
			err:    &pq.Error{Code: "42P01"},
			wantOK: false,
		},
		{
			name:     "mysql duplicate entry with key name",
			err:      &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a@b.c' for key 'users.users_email_key'"},
			wantKind: ConstraintUnique,
			wantName: "users_email_key",
			wantOK:   true,
		},
		{
			name:     "mysql foreign key child",
			err:      &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"},
			wantKind: ConstraintForeignKey,
			wantOK:   true,
		},
		{
			name:   "mysql unrelated error",
			err:    &mysql.MySQLError{Number: 1146, Message: "Table 'x' doesn't exist"},
			wantOK: false,
		},
		{
			name:     "sqlite unique by message",
			err:      errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)"),
			wantKind: ConstraintUnique,
			wantOK:   true,
		},
		{
			name:     "sqlite foreign key by message",
			err:      errors.New("constraint failed: FOREIGN KEY constraint failed (787)"),
			wantKind: ConstraintForeignKey,
			wantOK:   true,
		},
		{
			name:   "plain error",
			err:    errors.New("connection refused"),
			wantOK: false,
		},
		{
			name:   "nil error",
			err:    nil,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			info, ok := Constraint(tt.err)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantKind, info.Kind)
			assert.Equal(t, tt.wantName, info.Name)
		})
	}
}

func TestViolationHelpers(t *testing.T) {
	t.Parallel()
	unique := &pq.Error{Code: "23505"}
	fk := &mysql.MySQLError{Number: 1451}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(unique))
}
