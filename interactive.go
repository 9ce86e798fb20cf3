package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"auto_social_publisher/workflow"
)

// console drives one workflow from a line-oriented terminal. Each loop
// iteration renders the active view and applies one command to it.
type console struct {
	o     *workflow.Orchestrator
	in    *bufio.Scanner
	out   io.Writer
	draft *workflow.CaptionDraft
	// draftFor is the workflow id the draft was seeded from.
	draftFor string
}

func runInteractive(ctx context.Context, o *workflow.Orchestrator, in io.Reader, out io.Writer, prompt string) error {
	c := &console{o: o, in: bufio.NewScanner(in), out: out}
	if strings.TrimSpace(prompt) != "" {
		if err := o.Start(ctx, prompt); err != nil {
			return err
		}
	} else if err := o.Resync(ctx); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		st := o.State()
		var (
			done bool
			err  error
		)
		switch st.View() {
		case workflow.ViewPrompt:
			done, err = c.prompt(ctx)
		case workflow.ViewCaptionReview:
			done, err = c.captions(ctx, st)
		case workflow.ViewImageReview:
			done, err = c.image(ctx, st)
		case workflow.ViewSchedule:
			done, err = c.schedule(ctx, st)
		case workflow.ViewPublishStatus:
			c.status(st)
			return nil
		}
		if done {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

// readLine returns the next trimmed input line; ok is false at end of input.
func (c *console) readLine(label string) (string, bool) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *console) prompt(ctx context.Context) (bool, error) {
	line, ok := c.readLine("What should we post about? ")
	if !ok {
		return true, nil
	}
	return false, c.o.Start(ctx, line)
}

func (c *console) captions(ctx context.Context, st workflow.State) (bool, error) {
	snap := st.Snapshot
	if c.draft == nil || c.draftFor != snap.ID {
		c.draft = workflow.NewCaptionDraft(snap)
		c.draftFor = snap.ID
	}

	fmt.Fprintf(c.out, "\nTopic: %s\n", snap.Topic)
	for _, p := range snap.Platforms {
		fmt.Fprintf(c.out, "[%s] %s\n", p, c.draft.Value(p))
		for i, opt := range c.draft.Options(p) {
			fmt.Fprintf(c.out, "   %d) %s\n", i+1, opt)
		}
	}
	help := "a = accept, g <platform> = more options, s <platform> <n> = select, e <platform> <text> = edit"
	if st.CanRejectCaption() {
		help += fmt.Sprintf(", r <feedback> = regenerate (%d left)", workflow.RemainingRegenerations(snap.RegenerateCountCaption))
	}
	fmt.Fprintln(c.out, help)

	line, ok := c.readLine("> ")
	if !ok {
		return true, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "a":
		err := c.o.ReviewCaption(ctx, true, "", c.draft.Values())
		if err == nil {
			c.draft = nil
		}
		return false, err
	case "r":
		err := c.o.ReviewCaption(ctx, false, rest, nil)
		if err == nil {
			c.draft = workflow.NewCaptionDraft(c.o.Snapshot())
		}
		return false, err
	case "g":
		if err := c.o.GenerateCaption(ctx, rest); err != nil {
			return false, err
		}
		c.draft.Refresh(rest, c.o.Snapshot().CaptionOptions[rest])
		return false, nil
	case "s":
		platform, n, _ := strings.Cut(rest, " ")
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return false, fmt.Errorf("option number: %w", err)
		}
		return false, c.draft.Select(platform, i-1)
	case "e":
		platform, text, _ := strings.Cut(rest, " ")
		return false, c.draft.Edit(platform, strings.TrimSpace(text))
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *console) image(ctx context.Context, st workflow.State) (bool, error) {
	fmt.Fprintf(c.out, "\nImage: %s\n", st.Snapshot.ImagePath)
	help := "a [path or url] = accept"
	if st.CanRejectImage() {
		help += fmt.Sprintf(", r <feedback> = regenerate (%d left)", workflow.RemainingRegenerations(st.Snapshot.RegenerateCountImage))
	}
	fmt.Fprintln(c.out, help)

	line, ok := c.readLine("> ")
	if !ok {
		return true, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "a":
		return false, c.o.ReviewImage(ctx, true, "", rest)
	case "r":
		return false, c.o.ReviewImage(ctx, false, rest, "")
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *console) schedule(ctx context.Context, st workflow.State) (bool, error) {
	suggested := ""
	if t := st.Snapshot.ScheduleTime; t != nil {
		suggested = t.Format(time.RFC3339)
	}
	label := "Publish at (RFC3339 or YYYY-MM-DD HH:MM): "
	if suggested != "" {
		label = fmt.Sprintf("Publish at [%s]: ", suggested)
	}
	line, ok := c.readLine(label)
	if !ok {
		return true, nil
	}
	if line == "" {
		line = suggested
	}
	at, err := workflow.ParseScheduleTime(line, time.Local)
	if err != nil {
		return false, err
	}
	return false, c.o.Schedule(ctx, at)
}

func (c *console) status(st workflow.State) {
	snap := st.Snapshot
	if st.Err != "" {
		fmt.Fprintf(c.out, "error: %s\n", st.Err)
	}
	platforms := append([]string{}, snap.Platforms...)
	sort.Strings(platforms)
	for _, p := range platforms {
		ds, ok := snap.PublishStatus[p]
		switch {
		case !ok:
			fmt.Fprintf(c.out, "%-10s pending\n", p)
		case ds.State == workflow.DeliveryFailed:
			fmt.Fprintf(c.out, "%-10s failed: %s\n", p, ds.Reason)
		default:
			fmt.Fprintf(c.out, "%-10s %s (%s)\n", p, ds.State, ds.Detail)
		}
	}
	if st.ShowCompletionBanner() {
		fmt.Fprintln(c.out, "All posts published. Workflow completed.")
	}
}
