package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/datatypes"

	apperrors "github.com/seewalk/verslo-daigynas-directory-sub001/pkg/errors"
	"github.com/seewalk/verslo-daigynas-directory-sub001/pkg/validator"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// normaliseIDs trims uids and vendor ids, drops blanks and duplicates, and keeps first-seen order.
func normaliseIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func containsString(ids []string, target string) bool {
	target = strings.TrimSpace(target)
	return target != "" && slices.ContainsFunc(ids, func(id string) bool {
		return strings.TrimSpace(id) == target
	})
}

// firstNonEmpty picks the first non-blank display value, e.g. vendor name before vendor id.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// encodeMetadata stores notification and audit metadata as a JSON object; empty maps are NULL.
func encodeMetadata(metadata map[string]any) (datatypes.JSON, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}

// decodeMetadata is lenient: unreadable metadata from imported rows decodes to nil.
func decodeMetadata(raw datatypes.JSON) map[string]any {
	var out map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

// validationFailure converts validator output into VALIDATION_FAILED with per-field messages.
func validationFailure(err error) error {
	var failures validator.ValidationErrors
	if errors.As(err, &failures) {
		return apperrors.NewValidation(failures.Error()).WithFields(failures.Fields())
	}
	return apperrors.NewValidation(err.Error())
}
