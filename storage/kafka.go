package storage

import (
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/Shopify/sarama"

	"github.com/janelia-flyem/omerotools/omero"
)

// KafkaMaxMessageSize is the max message size in bytes for a Kafka message.
const KafkaMaxMessageSize = 980 * 1024

var badTopicChars = regexp.MustCompile(`[^a-zA-Z0-9\._\-]+`)

// ActivityLog publishes one JSON message per script run.  A nil *ActivityLog
// discards everything, so callers need not check whether Kafka is configured.
type ActivityLog struct {
	producer sarama.AsyncProducer
	topic    string

	wg sync.WaitGroup
}

// NewActivityLog connects to the configured kafka servers.  It returns nil
// without error if no servers are configured.
func NewActivityLog(kc KafkaConfig, hostID string) (*ActivityLog, error) {
	if len(kc.Servers) == 0 {
		return nil, nil
	}
	config := sarama.NewConfig()
	config.Producer.MaxMessageBytes = KafkaMaxMessageSize
	if kc.BufferSize > 0 {
		config.ChannelBufferSize = kc.BufferSize
	}
	producer, err := sarama.NewAsyncProducer(kc.Servers, config)
	if err != nil {
		return nil, err
	}
	topic := kc.TopicActivity
	if topic == "" {
		topic = "omerotools-" + hostID
	}
	return newActivityLog(producer, topic), nil
}

func newActivityLog(producer sarama.AsyncProducer, topic string) *ActivityLog {
	a := &ActivityLog{
		producer: producer,
		topic:    badTopicChars.ReplaceAllString(topic, "-"),
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for err := range producer.Errors() {
			omero.Errorf("error on kafka send to %s: %v\n", err.Msg.Topic, err.Err)
		}
	}()
	omero.Infof("Kafka topic for omerotools activity: %s\n", a.topic)
	return a
}

// Topic returns the activity topic.
func (a *ActivityLog) Topic() string {
	if a == nil {
		return ""
	}
	return a.topic
}

// Publish sends an activity record.
func (a *ActivityLog) Publish(activity map[string]interface{}) {
	if a == nil {
		return
	}
	jsonmsg, err := json.Marshal(activity)
	if err != nil {
		omero.Errorf("unable to marshal activity for kafka logging: %v\n", err)
		return
	}
	timeKey := sarama.StringEncoder(strconv.FormatInt(time.Now().UnixNano(), 10))
	a.producer.Input() <- &sarama.ProducerMessage{Topic: a.topic, Key: timeKey, Value: sarama.ByteEncoder(jsonmsg)}
}

// LogReport publishes the outcome of a run.
func (a *ActivityLog) LogReport(r *omero.Report, user string) {
	if a == nil || r == nil {
		return
	}
	succeeded, skipped, failed := r.Counts()
	a.Publish(map[string]interface{}{
		"Time":      r.Started.Unix(),
		"Duration":  r.Finished.Sub(r.Started).Seconds(),
		"Report":    r.ID,
		"Script":    r.Script,
		"User":      user,
		"Message":   r.Message,
		"Succeeded": succeeded,
		"Skipped":   skipped,
		"Failed":    failed,
	})
}

// Close flushes the queue and stops the producer.
func (a *ActivityLog) Close() error {
	if a == nil {
		return nil
	}
	err := a.producer.Close()
	a.wg.Wait()
	if err != nil {
		omero.Errorf("Kafka producer had error on close: %v\n", err)
		return err
	}
	omero.Infof("Successfully shut down kafka producer.\n")
	return nil
}
