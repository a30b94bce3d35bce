package omr

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ResultSummary is the compact form of a result published on the combined topic.
type ResultSummary struct {
	Station   string    `json:"station"`
	ID        string    `json:"id"`
	Questions int       `json:"questions"`
	Score     *Score    `json:"score,omitempty"`
	GradedAt  time.Time `json:"gradedAt"`
}

// Publisher publishes graded sheets to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	latest        map[string]ResultSummary
	mu            sync.RWMutex
}

// NewPublisher creates a result publisher. MQTT_PUBLISH_PREFIX overrides prefix;
// an empty prefix falls back to "bubblegrade".
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "bubblegrade"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           1,
		retain:        true,
		latest:        make(map[string]ResultSummary),
	}
}

// PublishResult publishes the full result to {prefix}/{station}/result and the
// latest result of every station to {prefix}/results.
func (p *Publisher) PublishResult(r *Result) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	station := r.Source
	if station == "" {
		station = "unknown"
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := p.publish(fmt.Sprintf("%s/%s/result", p.publishPrefix, station), payload); err != nil {
		return err
	}

	p.mu.Lock()
	p.latest[station] = ResultSummary{
		Station:   station,
		ID:        r.ID,
		Questions: r.Answers.QuestionCount(),
		Score:     r.Score,
		GradedAt:  r.GradedAt,
	}
	p.mu.Unlock()

	if err := p.publishCombined(); err != nil {
		log.Printf("[MQTT] error publishing combined results: %v", err)
		return err
	}

	log.Printf("[MQTT] published result %s for %s", r.ID, station)
	return nil
}

func (p *Publisher) publishCombined() error {
	message := map[string]interface{}{
		"results":   p.Latest(),
		"timestamp": time.Now().Unix(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined results: %w", err)
	}
	return p.publish(fmt.Sprintf("%s/results", p.publishPrefix), payload)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// Latest returns the last published summary per station, sorted by station
func (p *Publisher) Latest() []ResultSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ResultSummary, 0, len(p.latest))
	for _, s := range p.latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Station < out[j].Station })
	return out
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
