package observability

import (
	"testing"

	"github.com/arzanfood/api/internal/platform/requestctx"
)

func TestParseCloudTraceHeader(t *testing.T) {
	cases := []struct {
		name        string
		header      string
		wantOK      bool
		wantTraceID string
		wantSpanID  string
		wantSampled bool
	}{
		{
			name:        "hex span sampled",
			header:      "105445aa7843bc8bf206b12000100000/00f067aa0ba902b7;o=1",
			wantOK:      true,
			wantTraceID: "105445aa7843bc8bf206b12000100000",
			wantSpanID:  "00f067aa0ba902b7",
			wantSampled: true,
		},
		{
			name:        "decimal span not sampled",
			header:      "105445aa7843bc8bf206b12000100000/67667974448284343;o=0",
			wantOK:      true,
			wantTraceID: "105445aa7843bc8bf206b12000100000",
			wantSpanID:  "00f067aa0ba902b7",
			wantSampled: false,
		},
		{
			name:        "short hex span left padded",
			header:      "105445aa7843bc8bf206b12000100000/a2b7;o=1",
			wantOK:      true,
			wantTraceID: "105445aa7843bc8bf206b12000100000",
			wantSpanID:  "000000000000a2b7",
			wantSampled: true,
		},
		{
			name:   "missing option part",
			header: "105445aa7843bc8bf206b12000100000/00f067aa0ba902b7",
			wantOK: true, wantTraceID: "105445aa7843bc8bf206b12000100000",
			wantSpanID: "00f067aa0ba902b7",
		},
		{name: "empty header"},
		{name: "no span segment", header: "105445aa7843bc8bf206b12000100000"},
		{name: "short trace id", header: "abc123/00f067aa0ba902b7;o=1"},
		{name: "garbage span", header: "105445aa7843bc8bf206b12000100000/not-a-span;o=1"},
		{name: "zero span", header: "105445aa7843bc8bf206b12000100000/0;o=1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info, spanCtx, ok := parseCloudTraceHeader(tc.header)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !tc.wantOK {
				return
			}
			if info.TraceID != tc.wantTraceID {
				t.Errorf("trace id = %q, want %q", info.TraceID, tc.wantTraceID)
			}
			if info.SpanID != tc.wantSpanID {
				t.Errorf("span id = %q, want %q", info.SpanID, tc.wantSpanID)
			}
			if info.Sampled != tc.wantSampled {
				t.Errorf("sampled = %v, want %v", info.Sampled, tc.wantSampled)
			}
			if !spanCtx.IsRemote() {
				t.Error("span context not marked remote")
			}
			if spanCtx.IsSampled() != tc.wantSampled {
				t.Errorf("span context sampled = %v, want %v", spanCtx.IsSampled(), tc.wantSampled)
			}
		})
	}
}

func TestFormatCloudTraceHeader(t *testing.T) {
	info := requestctx.TraceInfo{
		TraceID: "105445aa7843bc8bf206b12000100000",
		SpanID:  "00f067aa0ba902b7",
		Sampled: true,
	}
	if got := formatCloudTraceHeader(info); got != "105445aa7843bc8bf206b12000100000/00f067aa0ba902b7;o=1" {
		t.Errorf("formatted header = %q", got)
	}

	info.Sampled = false
	if got := formatCloudTraceHeader(info); got != "105445aa7843bc8bf206b12000100000/00f067aa0ba902b7;o=0" {
		t.Errorf("formatted header = %q", got)
	}

	if got := formatCloudTraceHeader(requestctx.TraceInfo{}); got != "" {
		t.Errorf("empty info produced header %q", got)
	}
}
