package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	renderscan "github.com/Swind/go-render-scan"
	"github.com/Swind/go-render-scan/core"
)

const saveSession = `{
  "steps": [
    {"op": "advance", "ms": 100},
    {"op": "input", "events": [{"type": "pointerup", "path": ["App", "Toolbar", "SaveButton"]}]},
    {"op": "render", "component": "Toolbar", "self_ms": 2, "total_ms": 5,
     "changes": [{"name": "saving", "category": "state"}]},
    {"op": "render", "component": "SaveButton", "commit": false},
    {"op": "input", "events": [{"type": "click", "path": ["App", "Toolbar", "SaveButton"]}]},
    {"op": "advance", "ms": 20},
    {"op": "timing", "interaction_id": 3, "name": "click", "start_ms": 98, "duration_ms": 48},
    {"op": "long_render", "start_ms": 120, "end_ms": 180},
    {"op": "long_render", "start_ms": 400, "end_ms": 520, "components": [{"name": "Chart", "renders": 4}]}
  ]
}`

func testConfig() *renderscan.Config {
	cfg := renderscan.DefaultConfig()
	cfg.Logger = core.NewNoOpLogger()
	return cfg
}

func decode(t *testing.T, script string) *Session {
	t.Helper()
	var s Session
	if err := json.Unmarshal([]byte(script), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return &s
}

// TestReplay_CorrelatedSession verifies a scripted click end to end
// Given: A session with one click, two renders, a timing entry and two long renders
// When: It is replayed
// Then: One correlated record is produced and only the long render outside
// the interaction window survives the merge
func TestReplay_CorrelatedSession(t *testing.T) {
	// Arrange
	session := decode(t, saveSession)

	// Act
	res, err := Replay(context.Background(), session, testConfig())

	// Assert
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	rec := res.Records[0]
	if rec.ID != "interaction-1" || rec.Source != "correlated" || rec.LatencyMs != 48 || rec.InteractionID != 3 {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Renders) != 2 {
		t.Fatalf("Renders = %+v, want 2", rec.Renders)
	}
	if rec.Renders[0].Unnecessary != 0 || rec.Renders[0].Changes["state"]["saving"] != 1 {
		t.Errorf("Toolbar = %+v, want one necessary render changing state.saving", rec.Renders[0])
	}
	if rec.Renders[1].Unnecessary != 1 {
		t.Errorf("SaveButton = %+v, want an unnecessary render", rec.Renders[1])
	}

	if len(res.Timeline) != 2 {
		t.Fatalf("Timeline = %+v, want interaction plus one long render", res.Timeline)
	}
	if res.Timeline[0].InteractionID != "interaction-1" || res.Timeline[0].StartMs != 98 || res.Timeline[0].EndMs != 146 {
		t.Errorf("Timeline[0] = %+v, want interaction-1 over [98,146)", res.Timeline[0])
	}
	if res.Timeline[1].Kind != "long-render" || res.Timeline[1].StartMs != 400 {
		t.Errorf("Timeline[1] = %+v, want the long render at 400ms", res.Timeline[1])
	}
	if res.Stats.Correlated != 1 || res.Stats.PendingTasks != 0 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestReplay_NoTimingFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.TimingSupported = false

	res, err := Replay(context.Background(), decode(t, saveSession), cfg)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].Source != "fallback" || res.Records[0].LatencyMs != 20 {
		t.Errorf("Records = %+v, want one 20ms fallback record", res.Records)
	}
}

func TestReplay_InvalidSteps(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"unknown op", `{"steps":[{"op":"scroll"}]}`, `step 0 (scroll)`},
		{"negative advance", `{"steps":[{"op":"advance","ms":-1}]}`, "negative advance"},
		{"unknown event", `{"steps":[{"op":"input","events":[{"type":"wheel","path":["A"]}]}]}`, `"wheel"`},
		{"render without component", `{"steps":[{"op":"render"}]}`, "without component"},
		{"bad category", `{"steps":[{"op":"render","component":"A","changes":[{"name":"x","category":"hook"}]}]}`, `"hook"`},
		{"inverted long render", `{"steps":[{"op":"long_render","start_ms":5,"end_ms":1}]}`, "ends before"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Replay(context.Background(), decode(t, tt.script), testConfig())
			if !errors.Is(err, ErrInvalidStep) {
				t.Fatalf("Replay() error = %v, want ErrInvalidStep", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

// TestRunCommand_Output verifies both output formats of the run command
func TestRunCommand_Output(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(saveSession), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("text", func(t *testing.T) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out

		if err := app.Run([]string{"render-scan-replay", "run", "--file", path}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		want := "records: 1\n" +
			"  interaction-1 pointer SaveButton latency=48ms source=correlated\n" +
			"    Toolbar renders=1 unnecessary=0 self=2ms\n" +
			"    SaveButton renders=1 unnecessary=1 self=0ms\n" +
			"timeline: 2\n" +
			"  interaction [98ms, 146ms) interaction-1\n" +
			"  long-render [400ms, 520ms) Chart\n"
		if out.String() != want {
			t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out

		if err := app.Run([]string{"render-scan-replay", "run", "-f", path, "--format", "json", "--no-timing"}); err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		var res Result
		if err := json.Unmarshal(out.Bytes(), &res); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out.String())
		}
		if len(res.Records) != 1 || res.Records[0].Source != "fallback" {
			t.Errorf("Records = %+v, want one fallback record", res.Records)
		}
	})
}

func TestParseKinds(t *testing.T) {
	kinds, err := parseKinds([]string{"Pointer", " keyboard"})
	if err != nil || len(kinds) != 2 {
		t.Fatalf("parseKinds() = %v, %v", kinds, err)
	}
	if _, err := parseKinds([]string{"touch"}); err == nil {
		t.Error("parseKinds(touch) succeeded")
	}
}
