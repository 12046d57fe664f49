package lifecycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/luisjglz/evaluat/pkg/types"
)

// ParseResultValue parses a submitted numeric result. Both the decimal
// point and the decimal comma are accepted as separator, with an
// optional exponent; anything else is a validation error reported per
// field, never fatal to a batch.
func ParseResultValue(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, types.NewValidationError(types.ErrCodeMalformedNumber, "value is empty", nil)
	}

	// A single comma acts as the decimal separator
	if strings.Count(trimmed, ",") == 1 && !strings.Contains(trimmed, ".") {
		trimmed = strings.Replace(trimmed, ",", ".", 1)
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, types.NewValidationError(types.ErrCodeMalformedNumber, "value is not a valid number", map[string]interface{}{
			"raw": raw,
		})
	}
	return value, nil
}

// captureAllowed decides whether the laboratory accepts a capture
// today. The window must be open, and the laboratory must either still
// be in Capturing or have an in-effect capture override re-admitting
// late entry after automatic advancement.
func captureAllowed(lab *types.Laboratory, today time.Time) (bool, string) {
	if !CaptureWindowOpen(lab, today) {
		return false, "capture window is closed"
	}
	if lab.State == types.StateConfiguring {
		return false, "laboratory has not entered the capture phase"
	}
	if lab.State != types.StateCapturing && !CaptureOverrideInEffect(lab, today) {
		return false, "reporting period is closed"
	}
	return true, ""
}
