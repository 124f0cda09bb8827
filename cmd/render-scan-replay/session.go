package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	renderscan "github.com/Swind/go-render-scan"
	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/core"
	"github.com/Swind/go-render-scan/ledger"
	"github.com/Swind/go-render-scan/timeline"
	"github.com/benbjohnson/clock"
)

// ErrInvalidStep is wrapped by every script validation error.
var ErrInvalidStep = errors.New("invalid step")

// Session is a scripted host session. Times are milliseconds on a virtual
// clock that starts at zero.
type Session struct {
	Steps []Step `json:"steps"`
}

// Step is one scripted host action. Op selects which fields apply:
//
//	advance      ms
//	input        events
//	render       component, self_ms, total_ms, commit, changes
//	timing       interaction_id, name, start_ms, duration_ms, processing_start_ms, processing_end_ms
//	long_render  start_ms, end_ms, components
type Step struct {
	Op string `json:"op"`

	Ms float64 `json:"ms,omitempty"`

	Events []ScriptedInput `json:"events,omitempty"`

	Component string           `json:"component,omitempty"`
	SelfMs    float64          `json:"self_ms,omitempty"`
	TotalMs   float64          `json:"total_ms,omitempty"`
	Commit    *bool            `json:"commit,omitempty"`
	Changes   []ScriptedChange `json:"changes,omitempty"`

	InteractionID     uint64  `json:"interaction_id,omitempty"`
	Name              string  `json:"name,omitempty"`
	StartMs           float64 `json:"start_ms,omitempty"`
	DurationMs        float64 `json:"duration_ms,omitempty"`
	ProcessingStartMs float64 `json:"processing_start_ms,omitempty"`
	ProcessingEndMs   float64 `json:"processing_end_ms,omitempty"`

	EndMs      float64             `json:"end_ms,omitempty"`
	Components []ScriptedComponent `json:"components,omitempty"`
}

type ScriptedInput struct {
	Type    string   `json:"type"`
	Path    []string `json:"path"`
	Control bool     `json:"control,omitempty"`
}

type ScriptedChange struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Unstable bool   `json:"unstable,omitempty"`
}

type ScriptedComponent struct {
	Name    string  `json:"name"`
	Renders int     `json:"renders"`
	SelfMs  float64 `json:"self_ms,omitempty"`
}

// Result is what a replay produced.
type Result struct {
	Records  []RecordView      `json:"records"`
	Timeline []EventView       `json:"timeline"`
	Stats    core.TrackerStats `json:"stats"`
}

type RecordView struct {
	ID            string       `json:"id"`
	Kind          string       `json:"kind"`
	Component     string       `json:"component"`
	Path          []string     `json:"path"`
	Source        string       `json:"source"`
	StartMs       float64      `json:"start_ms"`
	LatencyMs     float64      `json:"latency_ms"`
	InteractionID uint64       `json:"interaction_id,omitempty"`
	Renders       []RenderView `json:"renders"`
}

type RenderView struct {
	Component   string                    `json:"component"`
	Renders     int                       `json:"renders"`
	Unnecessary int                       `json:"unnecessary"`
	SelfMs      float64                   `json:"self_ms"`
	TotalMs     float64                   `json:"total_ms"`
	Changes     map[string]map[string]int `json:"changes,omitempty"`
}

type EventView struct {
	Kind          string   `json:"kind"`
	StartMs       float64  `json:"start_ms"`
	EndMs         float64  `json:"end_ms"`
	InteractionID string   `json:"interaction_id,omitempty"`
	Components    []string `json:"components,omitempty"`
}

var eventTypes = map[string]capture.EventType{
	string(capture.EventPointerDown): capture.EventPointerDown,
	string(capture.EventPointerUp):   capture.EventPointerUp,
	string(capture.EventClick):       capture.EventClick,
	string(capture.EventKeyDown):     capture.EventKeyDown,
	string(capture.EventKeyUp):       capture.EventKeyUp,
	string(capture.EventKeyPress):    capture.EventKeyPress,
	string(capture.EventInput):       capture.EventInput,
	string(capture.EventChange):      capture.EventChange,
}

var categories = map[string]ledger.Category{
	"prop":    ledger.CategoryProp,
	"state":   ledger.CategoryState,
	"context": ledger.CategoryContext,
}

// Replay runs session through a fresh tracker built from cfg on a mock clock.
// The loop runs after every advance step, and once more a full correlation
// timeout after the last step so every pending task resolves.
func Replay(ctx context.Context, session *Session, cfg *renderscan.Config) (*Result, error) {
	clk := clock.NewMock()
	local := *cfg
	local.Clock = clk
	ids := 0
	local.NewID = func() string {
		ids++
		return "interaction-" + strconv.Itoa(ids)
	}

	tracker := renderscan.New(&local)
	defer tracker.Close()

	res := &Result{}
	tracker.SubscribeCompletions(func(rec capture.CompletionRecord) {
		res.Records = append(res.Records, recordView(rec))
	})

	for i, step := range session.Steps {
		if err := apply(ctx, tracker, clk, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	timeout := local.CorrelationTimeout
	if timeout <= 0 {
		timeout = capture.DefaultCorrelationTimeout
	}
	clk.Add(timeout)
	if err := tracker.Loop().RunUntilIdle(ctx); err != nil {
		return nil, err
	}

	for _, ev := range tracker.Timeline() {
		res.Timeline = append(res.Timeline, eventView(ev))
	}
	res.Stats = tracker.Stats()
	return res, nil
}

func apply(ctx context.Context, tracker *renderscan.Tracker, clk *clock.Mock, step Step) error {
	switch step.Op {
	case "advance":
		if step.Ms < 0 {
			return fmt.Errorf("%w: negative advance", ErrInvalidStep)
		}
		clk.Add(millis(step.Ms))
		return tracker.Loop().RunUntilIdle(ctx)

	case "input":
		if len(step.Events) == 0 {
			return fmt.Errorf("%w: no events", ErrInvalidStep)
		}
		events := make([]capture.InputEvent, 0, len(step.Events))
		for _, s := range step.Events {
			t, ok := eventTypes[s.Type]
			if !ok {
				return fmt.Errorf("%w: unknown event type %q", ErrInvalidStep, s.Type)
			}
			events = append(events, capture.InputEvent{
				Type:   t,
				Target: capture.StaticTarget{Path: s.Path, Control: s.Control},
			})
		}
		tracker.Dispatch(events...)
		return nil

	case "render":
		if step.Component == "" {
			return fmt.Errorf("%w: render without component", ErrInvalidStep)
		}
		changes := make([]ledger.Change, 0, len(step.Changes))
		for _, s := range step.Changes {
			cat, ok := categories[s.Category]
			if !ok {
				return fmt.Errorf("%w: unknown change category %q", ErrInvalidStep, s.Category)
			}
			changes = append(changes, ledger.Change{Name: s.Name, Category: cat, Unstable: s.Unstable})
		}
		tracker.ReportRender(ledger.RenderEvent{
			ComponentName: step.Component,
			Timing:        ledger.Timing{SelfTime: millis(step.SelfMs), TotalTime: millis(step.TotalMs)},
			Changes:       changes,
			DidCommit:     step.Commit == nil || *step.Commit,
		})
		return nil

	case "timing":
		name, ok := eventTypes[step.Name]
		if !ok {
			return fmt.Errorf("%w: unknown event type %q", ErrInvalidStep, step.Name)
		}
		tracker.ReportTiming(capture.TimingEntry{
			InteractionID:   step.InteractionID,
			Name:            name,
			StartTime:       millis(step.StartMs),
			Duration:        millis(step.DurationMs),
			ProcessingStart: millis(step.ProcessingStartMs),
			ProcessingEnd:   millis(step.ProcessingEndMs),
		})
		return nil

	case "long_render":
		if step.EndMs < step.StartMs {
			return fmt.Errorf("%w: long render ends before it starts", ErrInvalidStep)
		}
		renders := make([]ledger.Entry, 0, len(step.Components))
		for _, c := range step.Components {
			renders = append(renders, ledger.Entry{
				ComponentName: c.Name,
				RenderCount:   c.Renders,
				SelfTime:      millis(c.SelfMs),
				TotalTime:     millis(c.SelfMs),
			})
		}
		tracker.ReportLongRender(millis(step.StartMs), millis(step.EndMs), renders)
		return nil

	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidStep, step.Op)
	}
}

func recordView(rec capture.CompletionRecord) RecordView {
	start, _ := rec.Window()
	view := RecordView{
		ID:        rec.ID(),
		Kind:      rec.Kind().String(),
		Component: rec.Stage.ComponentName,
		Path:      rec.Stage.Path(),
		Source:    rec.Source.String(),
		StartMs:   ms(start),
		LatencyMs: ms(rec.Latency),
	}
	if rec.Entry != nil {
		view.InteractionID = rec.Entry.InteractionID
	}
	for _, e := range rec.Stage.Renders() {
		rv := RenderView{
			Component:   e.ComponentName,
			Renders:     e.RenderCount,
			Unnecessary: e.Unnecessary,
			SelfMs:      ms(e.SelfTime),
			TotalMs:     ms(e.TotalTime),
		}
		for cat, keys := range e.Changes {
			if len(keys) == 0 {
				continue
			}
			if rv.Changes == nil {
				rv.Changes = make(map[string]map[string]int)
			}
			counts := make(map[string]int, len(keys))
			for key, c := range keys {
				counts[key] = c.Count
			}
			rv.Changes[cat.String()] = counts
		}
		view.Renders = append(view.Renders, rv)
	}
	return view
}

func eventView(ev timeline.Event) EventView {
	view := EventView{
		Kind:    ev.Kind.String(),
		StartMs: ms(ev.Window.Start),
		EndMs:   ms(ev.Window.End),
	}
	if ev.Record != nil {
		view.InteractionID = ev.Record.ID()
	}
	for _, r := range ev.Renders {
		view.Components = append(view.Components, r.ComponentName)
	}
	return view
}

func millis(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
