package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-relay/internal/domain/alarm"
	"github.com/oshokin/alarm-relay/internal/zabbix"
)

type fakeItems struct {
	byName map[string]string
	items  []zabbix.Item
	err    error
}

func (f *fakeItems) ItemIDByName(_ context.Context, _, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	if id, ok := f.byName[name]; ok {
		return id, nil
	}

	return "", zabbix.ErrItemNotFound
}

func (f *fakeItems) Items(context.Context, string, string) ([]zabbix.Item, error) {
	return f.items, f.err
}

type fakeCharts struct {
	requested []string
	options   zabbix.ChartOptions
}

func (f *fakeCharts) Chart(_ context.Context, itemID string, opts zabbix.ChartOptions) ([]byte, error) {
	f.requested = append(f.requested, itemID)
	f.options = opts

	return []byte("png-" + itemID), nil
}

type sentImage struct {
	filename string
	image    string
	replyTo  domain.MessageID
}

type fakeSender struct {
	sent []sentImage
	err  error
}

func (f *fakeSender) SendImage(_ context.Context, filename string, image []byte, replyTo domain.MessageID) error {
	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, sentImage{filename: filename, image: string(image), replyTo: replyTo})

	return nil
}

func defaultProfiles() []Profile {
	return []Profile{
		{Name: "memory", Keywords: []string{"memory usage", "ram", "out of memory"}, Item: "Memory Usage(%)"},
		{Name: "cpu", Keywords: []string{"processor", "cpu usage", "process"}, Item: "CPU Utilization(Percent)"},
		{Name: "disk", Keywords: []string{"space", "datastore", "lun"}, ItemMarker: "percentage"},
	}
}

func newAttacher(items *fakeItems, charts *fakeCharts, sender *fakeSender) *Attacher {
	a := New(items, charts, sender, defaultProfiles(), zabbix.ChartOptions{Width: 900, Height: 200, Period: time.Hour}, 0)
	a.now = func() time.Time { return time.Unix(1700000000, 0) }

	return a
}

func trigger(description string) *domain.Trigger {
	return &domain.Trigger{
		ID:          "100",
		Description: description,
		Host:        &domain.Host{ID: "10", Name: "web01"},
	}
}

// TestAttach_NamedItem verifies a keyword profile with a name search.
func TestAttach_NamedItem(t *testing.T) {
	t.Parallel()

	items := &fakeItems{byName: map[string]string{"Memory Usage(%)": "501"}}
	charts := &fakeCharts{}
	sender := &fakeSender{}

	err := newAttacher(items, charts, sender).Attach(context.Background(), trigger("High Memory Usage on web01"), 42)
	require.NoError(t, err)

	require.Equal(t, []string{"501"}, charts.requested)
	require.Equal(t, 900, charts.options.Width)
	require.Equal(t, []sentImage{{filename: "item_graph_501_1700000000.png", image: "png-501", replyTo: 42}}, sender.sent)
}

// TestAttach_EveryMatchingProfile verifies each matching profile sends its own chart.
func TestAttach_EveryMatchingProfile(t *testing.T) {
	t.Parallel()

	items := &fakeItems{byName: map[string]string{
		"Memory Usage(%)":          "501",
		"CPU Utilization(Percent)": "502",
	}}
	charts := &fakeCharts{}
	sender := &fakeSender{}

	err := newAttacher(items, charts, sender).Attach(context.Background(), trigger("Processor load and RAM pressure"), 7)
	require.NoError(t, err)
	require.Equal(t, []string{"501", "502"}, charts.requested)
	require.Len(t, sender.sent, 2)
}

// TestAttach_NoProfile verifies unrelated triggers get no chart.
func TestAttach_NoProfile(t *testing.T) {
	t.Parallel()

	charts := &fakeCharts{}
	sender := &fakeSender{}

	err := newAttacher(&fakeItems{}, charts, sender).Attach(context.Background(), trigger("Host is unreachable"), 7)
	require.NoError(t, err)
	require.Empty(t, charts.requested)
	require.Empty(t, sender.sent)
}

// TestAttach_DiskBestMatch verifies the marker search picks the item sharing most words.
func TestAttach_DiskBestMatch(t *testing.T) {
	t.Parallel()

	items := &fakeItems{items: []zabbix.Item{
		{ID: "1", Name: "Free disk space on / (percentage)"},
		{ID: "2", Name: "Free disk space on /var (percentage)"},
		{ID: "3", Name: "Free disk space on /var"},
	}}
	charts := &fakeCharts{}
	sender := &fakeSender{}

	err := newAttacher(items, charts, sender).Attach(context.Background(), trigger("Low free space on /var"), 7)
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, charts.requested)
}

// TestAttach_Failures verifies failures are returned and the other profiles still run.
func TestAttach_Failures(t *testing.T) {
	t.Parallel()

	items := &fakeItems{
		byName: map[string]string{"CPU Utilization(Percent)": "502"},
		items:  []zabbix.Item{{ID: "9", Name: "Uptime"}},
	}
	charts := &fakeCharts{}
	sender := &fakeSender{}

	err := newAttacher(items, charts, sender).Attach(context.Background(), trigger("RAM low, CPU usage high, no space"), 7)
	require.ErrorIs(t, err, zabbix.ErrItemNotFound)
	require.ErrorIs(t, err, ErrNoMatchingItem)
	require.Equal(t, []string{"502"}, charts.requested)
	require.Len(t, sender.sent, 1)
}

// TestAttach_SendFailure verifies upload errors are surfaced.
func TestAttach_SendFailure(t *testing.T) {
	t.Parallel()

	errUpload := errors.New("upload failed")
	items := &fakeItems{byName: map[string]string{"Memory Usage(%)": "501"}}

	err := newAttacher(items, &fakeCharts{}, &fakeSender{err: errUpload}).
		Attach(context.Background(), trigger("Out of memory"), 7)
	require.ErrorIs(t, err, errUpload)
	require.Contains(t, err.Error(), "memory")
}

func TestBestMatch(t *testing.T) {
	t.Parallel()

	items := []zabbix.Item{
		{ID: "1", Name: "Datastore lun01 usage percentage"},
		{ID: "2", Name: "Datastore lun02 usage percentage"},
		{ID: "3", Name: "Datastore lun02 usage"},
	}

	require.Equal(t, "2", BestMatch("Datastore lun02 is almost full", "percentage", items))
	require.Equal(t, "1", BestMatch("datastore full", "percentage", items))
	require.Empty(t, BestMatch("nothing shared", "percentage", items))
	require.Empty(t, BestMatch("Datastore lun02", "percentage", nil))
}
