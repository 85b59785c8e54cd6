package storage

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"

	"github.com/janelia-flyem/omerotools/omero"
)

func TestActivityLog(t *testing.T) {
	omero.SetLogMode(omero.SilentMode)
	defer omero.SetLogMode(omero.InfoMode)

	producer := mocks.NewAsyncProducer(t, sarama.NewConfig())
	producer.ExpectInputWithCheckerFunctionAndSucceed(func(val []byte) error {
		var activity map[string]interface{}
		if err := json.Unmarshal(val, &activity); err != nil {
			return err
		}
		if activity["Script"] != "frap" || activity["User"] != "user-1" || activity["Failed"] != float64(1) {
			return fmt.Errorf("unexpected activity %v", activity)
		}
		return nil
	})

	log := newActivityLog(producer, "omerotools activity@host")
	if log.Topic() != "omerotools-activity-host" {
		t.Errorf("bad topic %q", log.Topic())
	}
	r := testReport("frap", time.Now())
	log.LogReport(r, "user-1")
	if err := log.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNilActivityLog(t *testing.T) {
	log, err := NewActivityLog(KafkaConfig{}, "host")
	if err != nil || log != nil {
		t.Fatalf("expected nil log without servers, got %v, %v", log, err)
	}
	log.LogReport(testReport("frap", time.Now()), "user-1")
	if err := log.Close(); err != nil {
		t.Errorf("Close on nil log: %v", err)
	}
}
