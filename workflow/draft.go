package workflow

import "fmt"

// CaptionDraft is the locally edited working copy of the captions during
// caption review. Whatever it holds at accept time is sent as the final
// value, whether it came from a generated option or was typed by hand.
type CaptionDraft struct {
	platforms []string
	options   map[string][]string
	values    map[string]string
}

// NewCaptionDraft seeds a draft from snap. A platform keeps its existing
// caption; without one it defaults to its first candidate option.
func NewCaptionDraft(snap Snapshot) *CaptionDraft {
	d := &CaptionDraft{
		platforms: append([]string{}, snap.Platforms...),
		options:   make(map[string][]string, len(snap.CaptionOptions)),
		values:    make(map[string]string, len(snap.Platforms)),
	}
	for p, opts := range snap.CaptionOptions {
		d.options[p] = append([]string{}, opts...)
	}
	for _, p := range snap.Platforms {
		if c, ok := snap.Captions[p]; ok && c != "" {
			d.values[p] = c
			continue
		}
		if opts := d.options[p]; len(opts) > 0 {
			d.values[p] = opts[0]
		}
	}
	return d
}

// Refresh merges newly generated options for platform. The current value is
// only replaced when the platform had no caption yet.
func (d *CaptionDraft) Refresh(platform string, options []string) {
	d.options[platform] = append([]string{}, options...)
	if d.values[platform] == "" && len(options) > 0 {
		d.values[platform] = options[0]
	}
}

// Options returns the candidate captions for platform.
func (d *CaptionDraft) Options(platform string) []string {
	return append([]string{}, d.options[platform]...)
}

// Select picks candidate i for platform.
func (d *CaptionDraft) Select(platform string, i int) error {
	opts := d.options[platform]
	if i < 0 || i >= len(opts) {
		return fmt.Errorf("option %d out of range for %s (have %d)", i, platform, len(opts))
	}
	d.values[platform] = opts[i]
	return nil
}

// Edit overrides the caption of platform with free text.
func (d *CaptionDraft) Edit(platform, text string) error {
	if !d.has(platform) {
		return fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	d.values[platform] = text
	return nil
}

// Value returns the current caption of platform.
func (d *CaptionDraft) Value(platform string) string {
	return d.values[platform]
}

// Values returns a copy of the working captions.
func (d *CaptionDraft) Values() map[string]string {
	out := make(map[string]string, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

func (d *CaptionDraft) has(platform string) bool {
	for _, p := range d.platforms {
		if p == platform {
			return true
		}
	}
	return false
}
