package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GregMSThompson/dashboard-backend/internal/dto"
	"github.com/GregMSThompson/dashboard-backend/internal/errs"
)

// decodeJSON reads the request body into v. Malformed bodies are input
// errors, not server faults.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// ifMatch reads the expected document version from If-Match. An absent
// header or "*" means no check.
func ifMatch(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, errs.NewValidationError("If-Match must be a document version")
	}
	return v, nil
}

func setETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
}

func dateRange(r *http.Request) dto.DateRangeQuery {
	q := r.URL.Query()
	return dto.DateRangeQuery{From: q.Get("from"), To: q.Get("to")}
}

// tableQuery reads sort, desc, page and filter.<column> parameters.
// Unreadable page or desc values are ignored.
func tableQuery(values url.Values) dto.TableQuery {
	tq := dto.TableQuery{Sort: values.Get("sort")}
	tq.Desc, _ = strconv.ParseBool(values.Get("desc"))
	tq.Page, _ = strconv.Atoi(values.Get("page"))
	for key, vals := range values {
		col, ok := strings.CutPrefix(key, "filter.")
		if !ok || col == "" {
			continue
		}
		if tq.Filters == nil {
			tq.Filters = make(map[string][]string)
		}
		tq.Filters[col] = append(tq.Filters[col], vals...)
	}
	return tq
}
