package solveapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"screensolve/internal/notify"
	"screensolve/internal/solver"
)

// ErrInvalidJSON reports a model reply that is not the expected JSON object.
var ErrInvalidJSON = errors.New("model returned invalid JSON")

const noAnswer = "No answer"

// StripFences removes a surrounding markdown code fence, including an
// optional language tag on the opening line.
func StripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	_, body, found := strings.Cut(raw, "\n")
	if !found {
		return strings.TrimSpace(strings.Trim(raw, "`"))
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

type modelReply struct {
	Answer     *string `json:"answer"`
	Confidence any     `json:"confidence"`
	Rationale  any     `json:"rationale"`
}

// ParseAnswer decodes a model reply, filling defaults for missing fields and
// clamping confidence to [0, 1].
func ParseAnswer(raw string) (solver.Answer, error) {
	var reply modelReply
	if err := json.Unmarshal([]byte(StripFences(raw)), &reply); err != nil {
		return solver.Answer{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	answer := solver.Answer{Answer: noAnswer}
	if reply.Answer != nil {
		answer.Answer = *reply.Answer
	}
	confidence, err := toFloat(reply.Confidence)
	if err != nil {
		return solver.Answer{}, fmt.Errorf("confidence: %w", err)
	}
	answer.Confidence = notify.ClampConfidence(confidence)
	if reply.Rationale != nil {
		answer.Rationale = fmt.Sprint(reply.Rationale)
	}
	return answer, nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported value %v", value)
	}
}
