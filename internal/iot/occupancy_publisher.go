package iot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
)

const publishTimeout = 3 * time.Second

type IoTDataAPI interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// OccupancyPublisher mirrors applied occupancy onto AWS IoT MQTT topics so
// signage devices can subscribe per lot.
type OccupancyPublisher struct {
	client      IoTDataAPI
	topicPrefix string
	logger      zerolog.Logger
}

func NewOccupancyPublisher(client IoTDataAPI, topicPrefix string) *OccupancyPublisher {
	if topicPrefix == "" {
		topicPrefix = "parking/occupancy"
	}
	return &OccupancyPublisher{client: client, topicPrefix: topicPrefix, logger: logging.Component("iot_publisher")}
}

func (p *OccupancyPublisher) Topic(lotID int) string {
	return fmt.Sprintf("%s/lots/%d", p.topicPrefix, lotID)
}

// NotifyOccupancy publishes with QoS 1. Failures are logged and dropped.
func (p *OccupancyPublisher) NotifyOccupancy(ctx context.Context, n domain.OccupancyNotification) {
	payload, err := json.Marshal(n)
	if err != nil {
		p.logger.Error().Err(err).Int("lot_id", n.LotID).Msg("encoding occupancy payload")
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	topic := p.Topic(n.LotID)
	_, err = p.client.Publish(pubCtx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payload,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("publishing occupancy")
		return
	}
	p.logger.Debug().Str("topic", topic).Int("free_spots", n.FreeSpots).Msg("occupancy published")
}
