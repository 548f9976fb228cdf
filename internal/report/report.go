package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	channeldomain "github.com/railzwaylabs/cipherpoll/internal/channel/domain"
	topicdomain "github.com/railzwaylabs/cipherpoll/internal/topic/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// cacheSize bounds rendered reports kept in memory. Finalized topics never
// change, so entries are never invalidated.
const cacheSize = 256

var ErrTopicNotFinalized = errors.New("topic_not_finalized")

var Module = fx.Module("report",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Topics   topicdomain.Service
	Channels channeldomain.Service
}

// Generator renders result reports for finalized topics. A report only ever
// contains the revealed aggregate and public counters.
type Generator struct {
	log      *zap.Logger
	topics   topicdomain.Service
	channels channeldomain.Service

	cache  *lru.Cache[uint64, []byte]
	flight singleflight.Group
}

func New(p Params) (*Generator, error) {
	cache, err := lru.New[uint64, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Generator{
		log:      p.Log.Named("report"),
		topics:   p.Topics,
		channels: p.Channels,
		cache:    cache,
	}, nil
}

// TopicReport returns the PDF bytes for topicID. Concurrent requests for the
// same topic share one render.
func (g *Generator) TopicReport(ctx context.Context, topicID uint64) ([]byte, error) {
	if pdf, ok := g.cache.Get(topicID); ok {
		return pdf, nil
	}

	v, err, _ := g.flight.Do(strconv.FormatUint(topicID, 10), func() (any, error) {
		return g.render(ctx, topicID)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (g *Generator) render(ctx context.Context, topicID uint64) ([]byte, error) {
	topic, err := g.topics.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if topic.State != topicdomain.StateFinalized || topic.RevealedAggregate == nil {
		return nil, ErrTopicNotFinalized
	}
	channel, err := g.channels.GetChannel(ctx, topic.ChannelID)
	if err != nil {
		return nil, err
	}

	pdf, err := Render(channel, topic)
	if err != nil {
		g.log.Error("render topic report", zap.Uint64("topic_id", topicID), zap.Error(err))
		return nil, err
	}
	g.cache.Add(topicID, pdf)
	return pdf, nil
}

// Render builds the document without touching storage.
func Render(channel *channeldomain.Channel, topic *topicdomain.Topic) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRows(
		text.NewRow(12, "Topic result", props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Center}),
		text.NewRow(8, fmt.Sprintf("%s (channel #%d)", channel.Name, channel.ID), props.Text{Size: 10, Align: align.Center}),
		line.NewRow(4),
	)

	for _, r := range rows(topic) {
		m.AddRows(field(r[0], r[1]))
	}

	m.AddRows(
		line.NewRow(4),
		text.NewRow(6, "Only the aggregate of all accepted submissions is revealed. Individual values were never decrypted.",
			props.Text{Size: 8, Style: fontstyle.Italic}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	return doc.GetBytes(), nil
}

func rows(t *topicdomain.Topic) [][2]string {
	out := [][2]string{
		{"Topic", "#" + strconv.FormatUint(t.ID, 10)},
		{"Content", t.ContentRef},
		{"Creator", t.Creator},
		{"Value range", fmt.Sprintf("%d to %d (default %d)", t.MinValue, t.MaxValue, t.DefaultValue)},
		{"Ended", t.EndTime.UTC().Format(time.RFC3339)},
		{"Submissions", strconv.FormatUint(t.SubmissionCount, 10)},
		{"Total weight", strconv.FormatUint(t.TotalWeight, 10)},
		{"Revealed aggregate", strconv.FormatInt(*t.RevealedAggregate, 10)},
	}
	if t.TotalWeight > 0 {
		avg := float64(*t.RevealedAggregate) / float64(t.TotalWeight)
		out = append(out, [2]string{"Weighted mean", strconv.FormatFloat(avg, 'f', 4, 64)})
	}
	if t.FinalizedAt != nil {
		out = append(out, [2]string{"Finalized", t.FinalizedAt.UTC().Format(time.RFC3339)})
	}
	return out
}

func field(label, value string) core.Row {
	return row.New(7).Add(
		text.NewCol(4, label, props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(8, value, props.Text{Size: 10}),
	)
}
