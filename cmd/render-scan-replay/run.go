package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	renderscan "github.com/Swind/go-render-scan"
	"github.com/Swind/go-render-scan/capture"
	"github.com/Swind/go-render-scan/core"
	"github.com/urfave/cli/v2"
)

func RunCommand() *cli.Command {
	def := renderscan.DefaultConfig()
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Replay a JSON session script",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Required: true,
				Usage:    "Path of the session script",
			},
			&cli.StringFlag{
				Name:  "format",
				Value: "text",
				Usage: "Output format: text or json",
			},
			&cli.StringSliceFlag{
				Name:  "kind",
				Value: cli.NewStringSlice("pointer", "keyboard"),
				Usage: "Interaction kinds to capture",
			},
			&cli.DurationFlag{
				Name:  "correlation-timeout",
				Value: def.CorrelationTimeout,
				Usage: "How long a finished capture waits for its timing entry",
			},
			&cli.DurationFlag{
				Name:  "idle-guard",
				Value: def.IdleGuard,
				Usage: "How long an unfinished capture blocks the next one",
			},
			&cli.IntFlag{
				Name:  "pool-capacity",
				Value: def.PoolCapacity,
				Usage: "Pending task bound",
			},
			&cli.IntFlag{
				Name:  "channel-history",
				Value: def.ChannelHistory,
				Usage: "Replay buffer per topic",
			},
			&cli.IntFlag{
				Name:  "log-capacity",
				Value: def.LogCapacity,
				Usage: "Timeline log bound",
			},
			&cli.IntFlag{
				Name:  "signature-depth",
				Value: def.SignatureDepth,
				Usage: "Pointer levels followed by structural signatures",
			},
			&cli.BoolFlag{
				Name:  "no-timing",
				Usage: "Treat the host as lacking event timing; every record falls back",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log pipeline activity to stderr",
			},
		},

		Action: RunAction,
	}
}

func RunAction(c *cli.Context) error {
	// 1. Get flags
	format := c.String("format")
	if format != "text" && format != "json" {
		return cli.Exit(fmt.Sprintf("unknown format %q", format), 1)
	}
	kinds, err := parseKinds(c.StringSlice("kind"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	cfg := renderscan.DefaultConfig()
	cfg.Kinds = kinds
	cfg.CorrelationTimeout = c.Duration("correlation-timeout")
	cfg.IdleGuard = c.Duration("idle-guard")
	cfg.PoolCapacity = c.Int("pool-capacity")
	cfg.ChannelHistory = c.Int("channel-history")
	cfg.LogCapacity = c.Int("log-capacity")
	cfg.SignatureDepth = c.Int("signature-depth")
	cfg.TimingSupported = !c.Bool("no-timing")
	cfg.Verbose = c.Bool("verbose")
	cfg.Logger = core.NewNoOpLogger()
	if cfg.Verbose {
		cfg.Logger = &core.DefaultLogger{Prefix: "replay"}
	}

	// 2. Load the script
	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read session: %v", err), 1)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to parse session: %v", err), 1)
	}

	// 3. Replay
	res, err := Replay(c.Context, &session, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 4. Format output
	if format == "json" {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	writeText(c.App.Writer, res)
	return nil
}

func parseKinds(names []string) ([]capture.InteractionKind, error) {
	var kinds []capture.InteractionKind
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "pointer":
			kinds = append(kinds, capture.KindPointer)
		case "keyboard":
			kinds = append(kinds, capture.KindKeyboard)
		default:
			return nil, fmt.Errorf("unknown interaction kind %q", name)
		}
	}
	return kinds, nil
}

func writeText(w io.Writer, res *Result) {
	fmt.Fprintf(w, "records: %d\n", len(res.Records))
	for _, rec := range res.Records {
		fmt.Fprintf(w, "  %s %s %s latency=%gms source=%s\n",
			rec.ID, rec.Kind, rec.Component, rec.LatencyMs, rec.Source)
		for _, r := range rec.Renders {
			fmt.Fprintf(w, "    %s renders=%d unnecessary=%d self=%gms\n",
				r.Component, r.Renders, r.Unnecessary, r.SelfMs)
		}
	}
	fmt.Fprintf(w, "timeline: %d\n", len(res.Timeline))
	for _, ev := range res.Timeline {
		label := ev.InteractionID
		if label == "" {
			label = strings.Join(ev.Components, ",")
		}
		fmt.Fprintf(w, "  %s [%gms, %gms) %s\n", ev.Kind, ev.StartMs, ev.EndMs, label)
	}
}
