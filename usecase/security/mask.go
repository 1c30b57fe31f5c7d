package security

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fastygo/schoolerp/domain"
)

const maskToken = "****"

type fieldKind int

const (
	kindUnknown fieldKind = iota
	kindNumericID
	kindEmail
	kindName
)

var numericIDHints = []string{"phone", "mobile", "account", "card", "aadhaar", "ssn", "passport", "number"}

// classify guesses how a field should be partially masked from its name.
func classify(field string) fieldKind {
	f := strings.ToLower(field)
	switch {
	case strings.Contains(f, "email"):
		return kindEmail
	case strings.Contains(f, "name"):
		return kindName
	case f == "id" || strings.HasSuffix(f, "_id") || strings.HasSuffix(field, "Id") || strings.HasSuffix(field, "ID"):
		return kindNumericID
	}
	for _, hint := range numericIDHints {
		if strings.Contains(f, hint) {
			return kindNumericID
		}
	}
	return kindUnknown
}

// Mask applies the tenant's data masking policy to record. The input is not modified.
func (uc *UseCase) Mask(ctx context.Context, tenantID string, record map[string]any) (map[string]any, error) {
	cfg, _, err := uc.securityConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return MaskRecord(cfg.DataMasking, record), nil
}

// MaskRecord masks the fields selected by policy. With no listed fields every field is selected.
func MaskRecord(policy domain.MaskingPolicy, record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		out[k] = v
	}
	if !policy.Enabled {
		return out
	}

	selected := func(string) bool { return true }
	if len(policy.Fields) > 0 {
		listed := make(map[string]struct{}, len(policy.Fields))
		for _, f := range policy.Fields {
			listed[strings.ToLower(f)] = struct{}{}
		}
		selected = func(field string) bool {
			_, ok := listed[strings.ToLower(field)]
			return ok
		}
	}

	for k, v := range out {
		if v == nil || !selected(k) {
			continue
		}
		if policy.Policy == domain.MaskingFull {
			out[k] = maskToken
			continue
		}
		out[k] = maskPartial(classify(k), v)
	}
	return out
}

// text renders v without exponent notation so trailing digits survive.
func text(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

func maskPartial(kind fieldKind, v any) any {
	s := text(v)
	switch kind {
	case kindNumericID:
		if len(s) <= 4 {
			return maskToken
		}
		return maskToken + s[len(s)-4:]
	case kindEmail:
		at := strings.LastIndexByte(s, '@')
		if at < 0 {
			return maskToken
		}
		local := []rune(s[:at])
		if len(local) > 2 {
			local = local[:2]
		}
		return string(local) + "***" + s[at:]
	case kindName:
		r := []rune(s)
		if len(r) <= 2 {
			return strings.Repeat("*", len(r))
		}
		return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
	default:
		return v
	}
}
