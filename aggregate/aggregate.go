// Debounced batching of per-member notifications (eg, join greetings), so that a burst of events turns in to a single rendered message.
package aggregate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/puzpuzpuz/xsync/v3"
)

var ErrNoBatch = errors.New("no pending batch for guild")

func init() {
	// output is chat markup, not HTML; "<@id>" mentions must pass through untouched
	pongo2.SetAutoescape(false)
}

type Member struct {
	ID   string
	Name string
}

func (m Member) Mention() string {
	return "<@" + m.ID + ">"
}

type batch struct {
	members []Member
	opened  time.Time
}

// Aggregator holds at most one open batch per guild, for a single notification kind.
type Aggregator struct {
	Kind    string
	batches *xsync.MapOf[string, *batch]
}

func New(kind string) *Aggregator {
	return &Aggregator{
		Kind:    kind,
		batches: xsync.NewMapOf[string, *batch](),
	}
}

// Adds a member to the guild's batch. Returns true only if this call opened a new batch: that caller (and only that caller) is responsible for waiting out the debounce window and then calling Render.
func (a *Aggregator) Enqueue(guildID string, m Member) bool {
	opened := false
	a.batches.Compute(guildID, func(b *batch, loaded bool) (*batch, bool) {
		if !loaded {
			opened = true
			b = &batch{opened: time.Now()}
		}
		b.members = append(b.members, m)
		return b, false
	})
	if opened {
		batchesOpened.WithLabelValues(a.Kind).Inc()
	}
	return opened
}

// Atomically closes the guild's batch and renders it with a pongo2 template.
//
// Available template variables: "members" (list of Member), "mentions" and "names" (comma-separated strings), "count", and "guild".
func (a *Aggregator) Render(guildID, template string) (string, error) {
	b, ok := a.batches.LoadAndDelete(guildID)
	if !ok {
		return "", fmt.Errorf("%w: kind=%s guild=%s", ErrNoBatch, a.Kind, guildID)
	}
	batchSize.WithLabelValues(a.Kind).Observe(float64(len(b.members)))
	return renderMembers(guildID, template, b.members)
}

// Drops the guild's open batch without rendering, if any.
func (a *Aggregator) Discard(guildID string) {
	a.batches.Delete(guildID)
}

func (a *Aggregator) Pending(guildID string) int {
	n := 0
	// read under the per-key lock, since Enqueue appends in place
	a.batches.Compute(guildID, func(b *batch, loaded bool) (*batch, bool) {
		if loaded {
			n = len(b.members)
		}
		return b, !loaded
	})
	return n
}

func renderMembers(guildID, template string, members []Member) (string, error) {
	tpl, err := pongo2.FromString(template)
	if err != nil {
		return "", fmt.Errorf("parsing notification template: %w", err)
	}
	mentions := make([]string, len(members))
	names := make([]string, len(members))
	for i, m := range members {
		mentions[i] = m.Mention()
		names[i] = m.Name
	}
	out, err := tpl.Execute(pongo2.Context{
		"members":  members,
		"mentions": strings.Join(mentions, ", "),
		"names":    strings.Join(names, ", "),
		"count":    len(members),
		"guild":    guildID,
	})
	if err != nil {
		return "", fmt.Errorf("rendering notification template: %w", err)
	}
	return out, nil
}
