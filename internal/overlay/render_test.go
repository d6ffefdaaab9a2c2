package overlay

import (
	"math"
	"strings"
	"testing"

	"screensolve/internal/notify"
)

func TestPercentAndTierProperty(t *testing.T) {
	for i := 0; i <= 1000; i++ {
		c := float64(i) / 1000
		want := int(math.Round(c * 100))
		got := Percent(c)
		if got != want {
			t.Fatalf("Percent(%v) = %d, want %d", c, got, want)
		}
		tier := TierFor(got)
		switch {
		case got >= 80 && tier != TierHigh:
			t.Fatalf("pct %d tier %s, want high", got, tier)
		case got >= 50 && got < 80 && tier != TierMid:
			t.Fatalf("pct %d tier %s, want mid", got, tier)
		case got < 50 && tier != TierLow:
			t.Fatalf("pct %d tier %s, want low", got, tier)
		}
	}
}

func TestPercentClampsOutOfRange(t *testing.T) {
	if Percent(-0.3) != 0 || Percent(1.7) != 100 || Percent(math.NaN()) != 0 {
		t.Fatalf("unexpected clamping: %d %d %d", Percent(-0.3), Percent(1.7), Percent(math.NaN()))
	}
}

func TestTierColors(t *testing.T) {
	cases := map[Tier]string{TierHigh: "#34d399", TierMid: "#fbbf24", TierLow: "#f87171"}
	for tier, want := range cases {
		if got := tier.Color(); got != want {
			t.Errorf("%s color = %s, want %s", tier, got, want)
		}
	}
}

func TestRenderContentEscapesUntrustedText(t *testing.T) {
	html := string(RenderContent(notify.Result{
		Answer:     `<script>alert("x")</script>`,
		Confidence: 0.6,
		Rationale:  `<img src=x onerror=alert(1)> & more`,
	}))
	if strings.Contains(html, "<script>") || strings.Contains(html, "<img") {
		t.Fatalf("markup not escaped: %s", html)
	}
	if !strings.Contains(html, "&lt;script&gt;") || !strings.Contains(html, "&amp; more") {
		t.Fatalf("expected escaped entities: %s", html)
	}
	if !strings.Contains(html, "60%") || !strings.Contains(html, "#fbbf24") {
		t.Fatalf("expected mid tier rendering: %s", html)
	}

	errHTML := string(RenderContent(notify.Failure{Message: "<b>bad</b>"}))
	if strings.Contains(errHTML, "<b>") {
		t.Fatalf("error markup not escaped: %s", errHTML)
	}
}

func TestRenderContentOmitsEmptyRationale(t *testing.T) {
	html := string(RenderContent(notify.Result{Answer: "7", Confidence: 0.1}))
	if strings.Contains(html, "ss-rationale") {
		t.Fatalf("unexpected rationale block: %s", html)
	}
	if !strings.Contains(html, "#f87171") || !strings.Contains(html, "10%") {
		t.Fatalf("expected low tier: %s", html)
	}
}

func TestRenderWidgetAbsentIsEmpty(t *testing.T) {
	if got := RenderWidget("w", PhaseAbsent, "x"); got != "" {
		t.Fatalf("absent widget rendered %q", got)
	}
	got := RenderWidget("w", PhaseFading, RenderContent(notify.Started{}))
	if !strings.Contains(got, "ss-fading") || !strings.Contains(got, "ss-dismiss") {
		t.Fatalf("unexpected widget: %s", got)
	}
}
