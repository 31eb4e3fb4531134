package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/WossMusic/woss-royalties/internal/auth"
)

func ownerFromPath(r *http.Request) (uuid.UUID, *AppError) {
	authUserID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrMissingToken
	}

	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}

	if userID != authUserID {
		return uuid.Nil, ErrResourceNotFound
	}

	return userID, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parsePagination(r *http.Request) (limit, offset int, fields []FieldError) {
	limit = defaultPageSize
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPageSize {
			fields = append(fields, FieldError{Field: "limit", Message: "must be between 1 and 100"})
		} else {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields = append(fields, FieldError{Field: "offset", Message: "must be zero or greater"})
		} else {
			offset = n
		}
	}
	return limit, offset, fields
}
