package iot

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v4"

	"github.com/kirieshkistudios/park-backend/internal/domain"
	"github.com/kirieshkistudios/park-backend/internal/logging"
	"github.com/kirieshkistudios/park-backend/internal/service"
)

// SQSAPI is the subset of the SQS client used by the consumer.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type ReportReceiver interface {
	ReceiveReport(ctx context.Context, report domain.InboundReport, source string) (*domain.ReportResult, error)
}

var errMalformedMessage = errors.New("malformed report message")

// SQSReportConsumer drains occupancy reports that the inference service
// queues instead of posting them over HTTP. Messages that can never succeed
// are deleted; anything else is left for redelivery after the visibility
// timeout.
type SQSReportConsumer struct {
	client   SQSAPI
	queueURL string
	receiver ReportReceiver
	validate *validator.Validate
	logger   zerolog.Logger

	retryDelay time.Duration
}

func NewSQSReportConsumer(client SQSAPI, queueURL string, receiver ReportReceiver) *SQSReportConsumer {
	return &SQSReportConsumer{
		client:     client,
		queueURL:   queueURL,
		receiver:   receiver,
		validate:   validator.New(),
		logger:     logging.Component("sqs_consumer"),
		retryDelay: 5 * time.Second,
	}
}

func (c *SQSReportConsumer) Start(ctx context.Context) {
	c.logger.Info().Str("queue", c.queueURL).Msg("SQS report consumer started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("SQS report consumer stopped")
			return
		default:
		}

		if !c.poll(ctx) {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				c.logger.Info().Msg("SQS report consumer stopped while waiting for retry")
				return
			}
		}
	}
}

// poll receives and processes one batch. It returns false when the
// receive call itself failed.
func (c *SQSReportConsumer) poll(ctx context.Context) bool {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            &c.queueURL,
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	})
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		c.logger.Error().Err(err).Msg("receiving report messages")
		return false
	}

	if len(result.Messages) > 0 {
		c.logger.Debug().Int("count", len(result.Messages)).Msg("received report messages")
	}
	for _, message := range result.Messages {
		messageID := ""
		if message.MessageId != nil {
			messageID = *message.MessageId
		}
		if message.Body == nil {
			c.logger.Warn().Str("message_id", messageID).Msg("empty report message, deleting")
			c.deleteMessage(ctx, message.ReceiptHandle)
			continue
		}

		msgCtx := logging.ContextWithRequestID(ctx, messageID)
		err := c.handle(msgCtx, *message.Body)
		switch {
		case err == nil:
			c.deleteMessage(ctx, message.ReceiptHandle)
		case isPermanent(err):
			c.logger.Warn().Err(err).Str("message_id", messageID).Msg("dropping report that cannot be applied")
			c.deleteMessage(ctx, message.ReceiptHandle)
		default:
			c.logger.Error().Err(err).Str("message_id", messageID).Msg("report failed, leaving it for redelivery")
		}
	}
	return true
}

func (c *SQSReportConsumer) handle(ctx context.Context, body string) error {
	var msg domain.QueuedReport
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return errors.Join(errMalformedMessage, err)
	}
	if err := c.validate.Struct(msg); err != nil {
		return errors.Join(errMalformedMessage, err)
	}
	image, err := base64.StdEncoding.DecodeString(msg.ImageBase64)
	if err != nil {
		return errors.Join(errMalformedMessage, err)
	}

	report := domain.InboundReport{
		Token:    msg.Token,
		CameraID: msg.CameraID,
		Free:     *msg.Free,
		Image:    image,
	}
	if msg.Occupied != nil {
		report.Occupied = null.IntFrom(int64(*msg.Occupied))
	}
	if msg.ProcessingTime != nil {
		report.ProcessingTime = null.FloatFrom(*msg.ProcessingTime)
	}

	_, err = c.receiver.ReceiveReport(ctx, report, "sqs")
	return err
}

func isPermanent(err error) bool {
	for _, target := range []error{
		errMalformedMessage,
		service.ErrUnauthorized,
		service.ErrUnknownCamera,
		service.ErrMissingImage,
		service.ErrInvalidReport,
		service.ErrOccupancyOutOfRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (c *SQSReportConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		c.logger.Warn().Msg("message has no receipt handle, cannot delete")
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("deleting report message")
	}
}
