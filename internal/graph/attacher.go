package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/logger"
	"github.com/oshokin/alarm-relay/internal/zabbix"
)

const defaultTimeout = 30 * time.Second

// ErrNoMatchingItem is returned when a profile matches the trigger but no host item fits it.
var ErrNoMatchingItem = errors.New("no matching chart item")

// ItemSource looks up host items.
type ItemSource interface {
	ItemIDByName(ctx context.Context, hostID, name string) (string, error)
	Items(ctx context.Context, hostID, search string) ([]zabbix.Item, error)
}

// ChartSource renders item charts.
type ChartSource interface {
	Chart(ctx context.Context, itemID string, opts zabbix.ChartOptions) ([]byte, error)
}

// ImageSender uploads a chart as a reply.
type ImageSender interface {
	SendImage(ctx context.Context, filename string, image []byte, replyTo domain.MessageID) error
}

// Profile selects a chart item for triggers whose description contains a keyword.
type Profile struct {
	// Name labels the profile in logs and errors.
	Name string
	// Keywords are matched case-insensitively against the description.
	Keywords []string
	// Item is searched among the host items by name.
	Item string
	// ItemMarker, used when Item is empty, picks the item containing it
	// whose name shares the most words with the description.
	ItemMarker string
}

type compiledProfile struct {
	Profile

	matches func(string) bool
}

// Attacher posts the charts of every profile matching a trigger.
type Attacher struct {
	// items resolves chart items.
	items ItemSource
	// charts renders the charts.
	charts ChartSource
	// sender uploads them.
	sender ImageSender
	// profiles are evaluated in order.
	profiles []compiledProfile
	// options size the charts.
	options zabbix.ChartOptions
	// timeout bounds one Attach call.
	timeout time.Duration
	// now names the uploaded files.
	now func() time.Time
}

// New creates an attacher. A non-positive timeout gets a default.
func New(
	items ItemSource,
	charts ChartSource,
	sender ImageSender,
	profiles []Profile,
	options zabbix.ChartOptions,
	timeout time.Duration,
) *Attacher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	compiled := make([]compiledProfile, 0, len(profiles))
	for _, p := range profiles {
		compiled = append(compiled, compiledProfile{
			Profile: p,
			matches: domain.KeywordMatcher(p.Keywords...),
		})
	}

	return &Attacher{
		items:    items,
		charts:   charts,
		sender:   sender,
		profiles: compiled,
		options:  options,
		timeout:  timeout,
		now:      time.Now,
	}
}

// Attach uploads one chart per matching profile as a reply to replyTo.
// Every profile is tried; the failures are joined.
func (a *Attacher) Attach(ctx context.Context, trigger *domain.Trigger, replyTo domain.MessageID) error {
	if trigger.Host == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var errs []error

	for i := range a.profiles {
		profile := &a.profiles[i]
		if !profile.matches(trigger.Description) {
			continue
		}

		if err := a.attachProfile(ctx, profile, trigger, replyTo); err != nil {
			errs = append(errs, fmt.Errorf("attach %s chart for trigger %s: %w", profile.Name, trigger.ID, err))
		}
	}

	return errors.Join(errs...)
}

func (a *Attacher) attachProfile(
	ctx context.Context,
	profile *compiledProfile,
	trigger *domain.Trigger,
	replyTo domain.MessageID,
) error {
	itemID, err := a.itemID(ctx, profile, trigger)
	if err != nil {
		return err
	}

	image, err := a.charts.Chart(ctx, itemID, a.options)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("item_graph_%s_%d.png", itemID, a.now().Unix())
	if err = a.sender.SendImage(ctx, filename, image, replyTo); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Sent chart", "profile", profile.Name, "item_id", itemID)

	return nil
}

func (a *Attacher) itemID(ctx context.Context, profile *compiledProfile, trigger *domain.Trigger) (string, error) {
	if profile.Item != "" {
		return a.items.ItemIDByName(ctx, trigger.Host.ID, profile.Item)
	}

	items, err := a.items.Items(ctx, trigger.Host.ID, profile.ItemMarker)
	if err != nil {
		return "", err
	}

	if id := BestMatch(trigger.Description, profile.ItemMarker, items); id != "" {
		return id, nil
	}

	return "", fmt.Errorf("%w: host %s", ErrNoMatchingItem, trigger.Host.ID)
}

// BestMatch returns the ID of the item containing marker whose name shares
// the most distinct words with description. It returns "" when no item
// shares a word. Ties keep the earlier item.
func BestMatch(description, marker string, items []zabbix.Item) string {
	wanted := tokens(description)
	marker = strings.ToLower(marker)

	var (
		bestID    string
		bestScore int
	)

	for _, item := range items {
		name := strings.ToLower(strings.TrimSpace(item.Name))
		if !strings.Contains(name, marker) {
			continue
		}

		score := 0

		for token := range tokens(name) {
			if _, ok := wanted[token]; ok {
				score++
			}
		}

		if score > bestScore {
			bestID, bestScore = item.ID, score
		}
	}

	return bestID
}

func tokens(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}

	return set
}
