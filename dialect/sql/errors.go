package sql

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	sqlite "modernc.org/sqlite"
)

// ConstraintKind classifies a database constraint violation.
type ConstraintKind string

// Constraint kinds reported by the supported backends.
const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintCheck      ConstraintKind = "check"
)

// ConstraintInfo describes a constraint violation extracted from a
// driver-specific error.
type ConstraintInfo struct {
	Kind ConstraintKind
	// Name is the constraint name when the backend reports one.
	Name string
}

// mysql 1062 messages look like:
// Duplicate entry 'a@b.c' for key 'users.users_email_key'
var mysqlDupKey = regexp.MustCompile(`for key '(?:.+\.)?(.+)'`)

// Constraint reports whether err represents a constraint violation and, if
// so, returns its classification. It understands the Postgres, MySQL and
// SQLite driver error types.
func Constraint(err error) (*ConstraintInfo, bool) {
	if err == nil {
		return nil, false
	}
	var pqe *pq.Error
	if errors.As(err, &pqe) {
		info := &ConstraintInfo{Name: pqe.Constraint}
		switch pqe.Code {
		case "23505":
			info.Kind = ConstraintUnique
		case "23503":
			info.Kind = ConstraintForeignKey
		case "23502":
			info.Kind = ConstraintNotNull
		case "23514":
			info.Kind = ConstraintCheck
		default:
			if pqe.Code.Class() != "23" {
				return nil, false
			}
		}
		return info, true
	}
	var mye *mysql.MySQLError
	if errors.As(err, &mye) {
		info := &ConstraintInfo{}
		switch mye.Number {
		case 1062, 1586:
			info.Kind = ConstraintUnique
			if m := mysqlDupKey.FindStringSubmatch(mye.Message); m != nil {
				info.Name = m[1]
			}
		case 1451, 1452:
			info.Kind = ConstraintForeignKey
		case 1048, 1364:
			info.Kind = ConstraintNotNull
		case 3819:
			info.Kind = ConstraintCheck
		default:
			return nil, false
		}
		return info, true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code&0xff != 19 { // SQLITE_CONSTRAINT
			return nil, false
		}
		info := &ConstraintInfo{}
		switch code {
		case 1555, 2067: // PRIMARYKEY, UNIQUE
			info.Kind = ConstraintUnique
		case 787: // FOREIGNKEY
			info.Kind = ConstraintForeignKey
		case 1299: // NOTNULL
			info.Kind = ConstraintNotNull
		case 275: // CHECK
			info.Kind = ConstraintCheck
		default:
			info.Kind = ConstraintUnique
		}
		return info, true
	}
	// String fallback for wrapped or third-party driver errors.
	msg := err.Error()
	switch {
	case containsAny(msg, "violates unique constraint", "UNIQUE constraint failed", "Error 1062"):
		return &ConstraintInfo{Kind: ConstraintUnique}, true
	case containsAny(msg, "violates foreign key constraint", "FOREIGN KEY constraint failed", "Error 1451", "Error 1452"):
		return &ConstraintInfo{Kind: ConstraintForeignKey}, true
	case containsAny(msg, "violates not-null constraint", "NOT NULL constraint failed", "Error 1048"):
		return &ConstraintInfo{Kind: ConstraintNotNull}, true
	case containsAny(msg, "violates check constraint", "CHECK constraint failed", "Error 3819"):
		return &ConstraintInfo{Kind: ConstraintCheck}, true
	}
	return nil, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	info, ok := Constraint(err)
	return ok && info.Kind == ConstraintUnique
}

// IsForeignKeyViolation reports whether err is a foreign key violation.
func IsForeignKeyViolation(err error) bool {
	info, ok := Constraint(err)
	return ok && info.Kind == ConstraintForeignKey
}
