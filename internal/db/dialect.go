package db

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// Search is a scope matching term case-insensitively against any of columns.
func Search(term string, columns ...string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		needle := strings.TrimSpace(term)
		if needle == "" || len(columns) == 0 {
			return tx
		}
		sqlite := IsSQLite(tx)
		pattern := "%" + needle + "%"
		if sqlite {
			pattern = strings.ToLower(pattern)
		}
		clauses := make([]string, 0, len(columns))
		args := make([]any, 0, len(columns))
		for _, column := range columns {
			if sqlite {
				clauses = append(clauses, fmt.Sprintf("LOWER(%s) LIKE ?", column))
			} else {
				clauses = append(clauses, fmt.Sprintf("%s ILIKE ?", column))
			}
			args = append(args, pattern)
		}
		return tx.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
}

// JSONArrayContains is a scope keeping rows whose JSON array column holds value.
func JSONArrayContains(column, value string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if IsSQLite(tx) {
			return tx.Where(fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s) WHERE value = ?)", column), value)
		}
		encoded, _ := json.Marshal([]string{value})
		return tx.Where(fmt.Sprintf("%s @> ?", column), datatypes.JSON(encoded))
	}
}

// JSONFieldEquals is a scope comparing a top-level JSON object field, read as
// text, with value.
func JSONFieldEquals(column, key, value string) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		if IsSQLite(tx) {
			return tx.Where(fmt.Sprintf("json_extract(%s, '$.%s') = ?", column, key), value)
		}
		return tx.Where(fmt.Sprintf("%s->>'%s' = ?", column, key), value)
	}
}
