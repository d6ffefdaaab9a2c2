package notify

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Kind is the wire tag of a notification.
type Kind string

const (
	KindLoading Kind = "loading"
	KindResult  Kind = "result"
	KindError   Kind = "error"
)

// Notification is one of Started, Result, or Failure.
type Notification interface {
	Kind() Kind
	sealed()
}

// Started signals that a pipeline run began.
type Started struct{}

// Result carries the remote solver's answer.
type Result struct {
	Answer     string
	Confidence float64
	Rationale  string
}

// Failure carries a user-facing error message.
type Failure struct {
	Message string
}

func (Started) Kind() Kind { return KindLoading }
func (Result) Kind() Kind  { return KindResult }
func (Failure) Kind() Kind { return KindError }

func (Started) sealed() {}
func (Result) sealed()  {}
func (Failure) sealed() {}

// Cases holds one handler per notification variant.
type Cases[T any] struct {
	Started func(Started) T
	Result  func(Result) T
	Failure func(Failure) T
}

// Match dispatches n to the handler for its variant. Every handler must be set.
func Match[T any](n Notification, c Cases[T]) T {
	switch v := n.(type) {
	case Started:
		return c.Started(v)
	case *Started:
		return c.Started(*v)
	case Result:
		return c.Result(v)
	case *Result:
		return c.Result(*v)
	case Failure:
		return c.Failure(v)
	case *Failure:
		return c.Failure(*v)
	default:
		panic(fmt.Sprintf("notify: unknown notification %T", n))
	}
}

// ClampConfidence bounds a confidence ratio to [0,1]. NaN maps to 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

type envelope struct {
	Type       Kind     `json:"type"`
	Answer     *string  `json:"answer,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Rationale  string   `json:"rationale,omitempty"`
	Message    *string  `json:"message,omitempty"`
}

// Encode renders a notification in its tagged wire form.
func Encode(n Notification) ([]byte, error) {
	env := Match(n, Cases[envelope]{
		Started: func(Started) envelope { return envelope{Type: KindLoading} },
		Result: func(r Result) envelope {
			answer := r.Answer
			confidence := r.Confidence
			return envelope{Type: KindResult, Answer: &answer, Confidence: &confidence, Rationale: r.Rationale}
		},
		Failure: func(f Failure) envelope {
			message := f.Message
			return envelope{Type: KindError, Message: &message}
		},
	})
	return json.Marshal(env)
}

// Decode parses the tagged wire form. Unknown tags are rejected.
func Decode(data []byte) (Notification, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	switch Kind(strings.TrimSpace(string(env.Type))) {
	case KindLoading:
		return Started{}, nil
	case KindResult:
		r := Result{Rationale: env.Rationale}
		if env.Answer != nil {
			r.Answer = *env.Answer
		}
		if env.Confidence != nil {
			r.Confidence = *env.Confidence
		}
		return r, nil
	case KindError:
		f := Failure{}
		if env.Message != nil {
			f.Message = *env.Message
		}
		return f, nil
	default:
		return nil, fmt.Errorf("decode notification: unknown type %q", env.Type)
	}
}
