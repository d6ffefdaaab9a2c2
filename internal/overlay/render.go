package overlay

import (
	"bytes"
	"html/template"
	"math"

	"screensolve/internal/notify"
)

// Tier buckets a confidence percentage for colour coding.
type Tier string

const (
	TierHigh Tier = "high"
	TierMid  Tier = "mid"
	TierLow  Tier = "low"
)

// Color returns the CSS colour for the tier.
func (t Tier) Color() string {
	switch t {
	case TierHigh:
		return "#34d399"
	case TierMid:
		return "#fbbf24"
	default:
		return "#f87171"
	}
}

// Percent converts a confidence ratio to a rounded percentage.
func Percent(confidence float64) int {
	return int(math.Round(notify.ClampConfidence(confidence) * 100))
}

// TierFor classifies a rounded percentage.
func TierFor(percent int) Tier {
	switch {
	case percent >= 80:
		return TierHigh
	case percent >= 50:
		return TierMid
	default:
		return TierLow
	}
}

var (
	loadingTmpl = template.Must(template.New("loading").Parse(
		`<div class="ss-loading"><span class="ss-spinner"></span>Solving&hellip;</div>`))

	resultTmpl = template.Must(template.New("result").Parse(
		`<div class="ss-answer">{{.Answer}}</div>` +
			`<div class="ss-confidence ss-tier-{{.Tier}}" style="{{.Style}}">{{.Percent}}%</div>` +
			`{{if .Rationale}}<div class="ss-rationale">{{.Rationale}}</div>{{end}}`))

	errorTmpl = template.Must(template.New("error").Parse(
		`<div class="ss-error">{{.}}</div>`))

	widgetTmpl = template.Must(template.New("widget").Parse(
		`<div id="screensolve-overlay" class="ss-widget ss-{{.Phase}}" data-surface="{{.Surface}}">` +
			`<button type="button" class="ss-dismiss" aria-label="Dismiss">&times;</button>` +
			`<div class="ss-content">{{.Content}}</div></div>`))
)

type resultView struct {
	Answer    string
	Percent   int
	Tier      Tier
	Style     template.CSS
	Rationale string
}

// RenderContent renders the inner widget markup for n. All interpolated text
// is HTML-escaped.
func RenderContent(n notify.Notification) template.HTML {
	var buf bytes.Buffer
	err := notify.Match(n, notify.Cases[error]{
		Started: func(notify.Started) error {
			return loadingTmpl.Execute(&buf, nil)
		},
		Result: func(r notify.Result) error {
			pct := Percent(r.Confidence)
			tier := TierFor(pct)
			return resultTmpl.Execute(&buf, resultView{
				Answer:    r.Answer,
				Percent:   pct,
				Tier:      tier,
				Style:     template.CSS("color: " + tier.Color()),
				Rationale: r.Rationale,
			})
		},
		Failure: func(f notify.Failure) error {
			return errorTmpl.Execute(&buf, f.Message)
		},
	})
	if err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	return template.HTML(buf.String())
}

// RenderWidget wraps content in the widget chrome. The dismiss control is
// part of the chrome and survives content replacement.
func RenderWidget(surface string, phase Phase, content template.HTML) string {
	if phase == PhaseAbsent {
		return ""
	}
	var buf bytes.Buffer
	_ = widgetTmpl.Execute(&buf, struct {
		Surface string
		Phase   string
		Content template.HTML
	}{surface, phase.String(), content})
	return buf.String()
}
