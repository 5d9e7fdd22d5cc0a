package worker

import (
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
)

type producer interface {
	Publish(topic string, body []byte) error
}

// Publisher queues reindex requests on NSQ.
type Publisher struct {
	producer producer
}

func NewPublisher(nsqdHost string) (*Publisher, error) {
	p, err := nsq.NewProducer(nsqdHost, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	return &Publisher{producer: p}, nil
}

func (p *Publisher) PublishReindex(filename string) error {
	body, err := json.Marshal(ReindexPayload{Filename: filename})
	if err != nil {
		return err
	}
	return p.producer.Publish(ReindexTopic, body)
}
