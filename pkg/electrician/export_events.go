package electrician

import (
	"context"

	"github.com/google/uuid"
	"github.com/joeydtaylor/steeze-cms/pkg/cms"
	"github.com/joeydtaylor/steeze-cms/pkg/codec"
)

// DefaultExportTopic carries export events unless CMS_EXPORT_TOPIC says otherwise.
const DefaultExportTopic = "cms.export"

type exportEnvelope struct {
	ID string `json:"id"`
	cms.ExportEvent
}

// ExportPublisher adapts a RelayClient to cms.EventPublisher.
type ExportPublisher struct {
	relay RelayClient
	topic string
	codec codec.Codec
}

func NewExportPublisher(relay RelayClient, topic string) *ExportPublisher {
	if relay == nil {
		relay = noopRelay{}
	}
	if topic == "" {
		topic = envOr("CMS_EXPORT_TOPIC", DefaultExportTopic)
	}
	return &ExportPublisher{relay: relay, topic: topic, codec: codec.JSONStrict}
}

func (p *ExportPublisher) PublishExport(ctx context.Context, ev cms.ExportEvent) error {
	id := uuid.NewString()
	body, err := p.codec.Marshal(exportEnvelope{ID: id, ExportEvent: ev})
	if err != nil {
		return err
	}
	return p.relay.Publish(ctx, RelayRequest{
		Topic: p.topic,
		Body:  body,
		Headers: map[string]string{
			"Content-Type":  p.codec.ContentType(),
			"X-Relay-Type":  "cms.ExportEvent",
			"X-Export-Id":   id,
			"X-Export-Path": ev.RFSName,
		},
	})
}
