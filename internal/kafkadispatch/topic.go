package kafkadispatch

import (
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/truecivic/ingestor/internal/domain"
)

// kafkaTopicAlreadyExistsErrorCode is the Kafka protocol error code for
// TOPIC_ALREADY_EXISTS.
const kafkaTopicAlreadyExistsErrorCode = 36

// ensureTopic creates topic if it doesn't already exist, tolerating a
// concurrent creation by another publisher/consumer instance.
func ensureTopic(ctx domain.Context, client *kgo.Client, topic string, partitions int32, replicationFactor int16) error {
	if topic == "" {
		return fmt.Errorf("op=kafkadispatch.ensure_topic: %w: topic name is empty", domain.ErrInvalidArgument)
	}

	req := kmsg.NewCreateTopicsRequest()
	req.TimeoutMillis = 30000

	topicReq := kmsg.NewCreateTopicsRequestTopic()
	topicReq.Topic = topic
	topicReq.NumPartitions = partitions
	topicReq.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topicReq)

	resp, err := client.Request(ctx, &req)
	if err != nil {
		return fmt.Errorf("op=kafkadispatch.ensure_topic topic=%s: %w", topic, err)
	}
	createResp, ok := resp.(*kmsg.CreateTopicsResponse)
	if !ok {
		return fmt.Errorf("op=kafkadispatch.ensure_topic topic=%s: unexpected response type %T", topic, resp)
	}

	for _, t := range createResp.Topics {
		if t.ErrorCode == 0 {
			continue
		}
		if t.ErrorCode == kafkaTopicAlreadyExistsErrorCode {
			slog.Default().Info("kafka topic already exists", slog.String("topic", topic))
			continue
		}
		msg := ""
		if t.ErrorMessage != nil {
			msg = *t.ErrorMessage
		}
		return fmt.Errorf("op=kafkadispatch.ensure_topic topic=%s code=%d: %s", topic, t.ErrorCode, msg)
	}
	return nil
}
