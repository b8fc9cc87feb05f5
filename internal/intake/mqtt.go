package intake

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/snarg/sherpa-serve/internal/config"
	"github.com/snarg/sherpa-serve/internal/job"
	"github.com/snarg/sherpa-serve/internal/mqttclient"
)

// MQTT bridges the broker to the worker pool: job requests arrive on the
// jobs topic, outcomes are published on the results topic.
type MQTT struct {
	client       *mqttclient.Client
	pool         *job.Pool
	resultsTopic string
	log          zerolog.Logger
}

// StartMQTT connects to the broker and subscribes to the jobs topic.
func StartMQTT(cfg *config.Config, pool *job.Pool, log zerolog.Logger) (*MQTT, error) {
	m := &MQTT{
		pool:         pool,
		resultsTopic: cfg.MQTTResultsTopic,
		log:          log.With().Str("component", "mqtt_intake").Logger(),
	}

	client, err := mqttclient.Connect(mqttclient.Options{
		BrokerURL: cfg.MQTTBrokerURL,
		ClientID:  cfg.MQTTClientID,
		Topics:    cfg.MQTTJobsTopic,
		Username:  cfg.MQTTUsername,
		Password:  cfg.MQTTPassword,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}
	client.SetMessageHandler(m.onMessage)
	m.client = client
	return m, nil
}

// Connected reports broker connectivity for the health endpoint.
func (m *MQTT) Connected() bool { return m.client.IsConnected() }

// Close disconnects from the broker.
func (m *MQTT) Close() { m.client.Close() }

func (m *MQTT) onMessage(topic string, payload []byte) {
	var req job.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		m.log.Warn().Err(err).Str("topic", topic).Msg("discarding malformed job payload")
		return
	}
	if !m.pool.Enqueue(job.Queued{Request: req, Source: "mqtt"}) {
		m.log.Warn().Str("audio", req.AudioPath).Msg("job queue full, dropping mqtt job")
		m.publishError(req, "queue full")
	}
}

// PublishResult reports a finished job back on the results topic. Called by
// the pool's result hook for mqtt-sourced jobs.
func (m *MQTT) PublishResult(q job.Queued, result job.Result, jobErr error) {
	if q.Source != "mqtt" {
		return
	}

	var payload any = result
	if jobErr != nil {
		if jerr, ok := jobErr.(*job.Error); ok {
			payload = jerr
		} else {
			payload = &job.Error{Message: jobErr.Error()}
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		m.log.Error().Err(err).Msg("marshal result payload")
		return
	}
	if err := m.client.Publish(m.resultsTopic, data); err != nil {
		m.log.Warn().Err(err).Str("topic", m.resultsTopic).Msg("publish result failed")
	}
}

func (m *MQTT) publishError(req job.Request, msg string) {
	data, err := json.Marshal(&job.Error{Message: msg})
	if err != nil {
		return
	}
	if err := m.client.Publish(m.resultsTopic, data); err != nil {
		m.log.Warn().Err(err).Str("topic", m.resultsTopic).Msg("publish error failed")
	}
}
