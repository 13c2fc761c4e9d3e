package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/codestation/lms-web/internal/core/domain"
)

// translate maps a non-2xx reply onto the domain error taxonomy.
func translate(status int, body []byte) error {
	switch status {
	case http.StatusBadRequest:
		field, detail := parseDetail(body)
		if detail == "" {
			detail = http.StatusText(status)
		}
		return &domain.ValidationError{Field: field, Detail: detail}
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		_, detail := parseDetail(body)
		if detail == "" {
			detail = http.StatusText(status)
		}
		return &domain.RequestError{Status: status, Message: detail}
	}
}

// parseDetail reads the error bodies the LMS API produces: {"detail": "..."}
// or a map of field name to message list. The first field in name order wins;
// non_field_errors carries no field.
func parseDetail(body []byte) (field, detail string) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", strings.TrimSpace(string(body))
	}
	if raw, ok := obj["detail"]; ok {
		return "", firstMessage(raw)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		msg := firstMessage(obj[k])
		if msg == "" {
			continue
		}
		if k == "non_field_errors" {
			return "", msg
		}
		return k, msg
	}
	return "", ""
}

func firstMessage(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

func outcome(err error) string {
	if _, ok := domain.IsValidation(err); ok {
		return "validation"
	}
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "failed"
	}
}
