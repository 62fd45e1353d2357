package httpapi

import (
	"net/url"
	"strconv"
	"strings"

	"ordergraph/internal/domain"
	"ordergraph/internal/planner"
)

const (
	paramStatus     = "status"
	paramMemberName = "memberName"
	paramOffset     = "offset"
	paramLimit      = "limit"
	paramStrategy   = "strategy"
)

// parseSearch reads the optional root filters. Blank values count as absent.
func parseSearch(query url.Values) (planner.OrderSearch, error) {
	var search planner.OrderSearch

	if raw := strings.TrimSpace(query.Get(paramStatus)); raw != "" {
		status, err := domain.ParseOrderStatus(strings.ToUpper(raw))
		if err != nil {
			return planner.OrderSearch{}, err
		}
		search.Status = &status
	}
	search.MemberName = strings.TrimSpace(query.Get(paramMemberName))
	return search, nil
}

// parsePage returns nil when neither offset nor limit is present. A missing
// limit next to an offset falls back to defaultLimit.
func parsePage(query url.Values, defaultLimit int) (*planner.Page, error) {
	_, hasOffset := query[paramOffset]
	_, hasLimit := query[paramLimit]
	if !hasOffset && !hasLimit {
		return nil, nil
	}

	page := planner.Page{Limit: defaultLimit}
	if hasOffset {
		offset, err := parseInt(query.Get(paramOffset), paramOffset)
		if err != nil {
			return nil, err
		}
		page.Offset = offset
	}
	if hasLimit {
		limit, err := parseInt(query.Get(paramLimit), paramLimit)
		if err != nil {
			return nil, err
		}
		page.Limit = limit
	}
	return &page, nil
}

func parseInt(raw, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &domain.InvalidQueryParameterError{Parameter: name, Reason: "must be an integer"}
	}
	return n, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &domain.InvalidQueryParameterError{Parameter: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}
