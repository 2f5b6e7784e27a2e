package postgres

import (
	"database/sql"
	"time"
)

func nullStringPtr(ptr *string) sql.NullString {
	if ptr == nil {
		return sql.NullString{Valid: false}
	}
	if *ptr == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func nullTimePtr(ptr *time.Time) sql.NullTime {
	if ptr == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *ptr, Valid: true}
}
