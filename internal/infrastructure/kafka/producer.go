package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/moisesblank/people-flow-desk-sub004/internal/dto"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/kafka/producer"
)

type NotificationProducer struct {
	*producer.Producer
	topic string
}

func NewNotificationProducer(producer *producer.Producer, topic string) *NotificationProducer {
	return &NotificationProducer{
		producer,
		topic,
	}
}

func (np *NotificationProducer) Send(ctx context.Context, notifications ...dto.Notification) error {
	var msgsToSend []kafka.Message

	for _, n := range notifications {
		value, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("NotificationProducer - Send - json.Marshal: %w", err)
		}

		msg := kafka.Message{
			Topic: np.topic,
			Key:   []byte(n.Email),
			Value: value,
			Headers: []kafka.Header{
				{Key: "notification_type", Value: []byte(n.Type)},
				{Key: "queue_id", Value: []byte(n.QueueID.String())},
			},
		}
		msgsToSend = append(msgsToSend, msg)
	}

	if len(msgsToSend) == 0 {
		return nil
	}

	err := np.Writer.WriteMessages(ctx, msgsToSend...)
	if err != nil {
		return fmt.Errorf("NotificationProducer - Send - np.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (np *NotificationProducer) Close() error {
	err := np.Producer.Close()
	if err != nil {
		return fmt.Errorf("NotificationProducer - Close: %w", err)
	}

	return nil
}
