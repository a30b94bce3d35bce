package omr

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// SheetHandler is called with the raw payload (an encoded sheet photo) received
// on a station's topic.
type SheetHandler func(stationID string, payload []byte)

// MQTTClient receives sheet photos from scanning stations
type MQTTClient struct {
	client      mqtt.Client
	config      *Config
	handler     SheetHandler
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT connects to the broker from the config or the MQTT_BROKER
// environment variable and subscribes to every station topic once connected.
// Without a broker MQTT is disabled and InitMQTT returns nil, nil.
func InitMQTT(config *Config, handler SheetHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("[MQTT] disabled: no broker configured")
		return nil, nil
	}

	if config == nil || len(config.Stations) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no stations configured")
	}

	c := &MQTTClient{config: config, handler: handler}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(envOr("MQTT_CLIENT_ID", config.MQTT.ClientID, "bubblegrade"))

	if username := envOr("MQTT_USERNAME", config.MQTT.Username, ""); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", config.MQTT.Password, ""))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	// sheets are graded one after another per station
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		log.Println("[MQTT] reconnecting...")
	})

	c.client = mqtt.NewClient(opts)
	go c.connectWithRetry()

	return c, nil
}

// NewMQTTClient wraps an existing mqtt.Client, e.g. a MockClient.
// Call Subscribe once the client is connected.
func NewMQTTClient(client mqtt.Client, config *Config, handler SheetHandler) *MQTTClient {
	return &MQTTClient{
		client:      client,
		config:      config,
		handler:     handler,
		isConnected: client.IsConnected(),
	}
}

func envOr(key, configured, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if configured != "" {
		return configured
	}
	return fallback
}

// connectWithRetry connects with exponential backoff capped at one minute
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay = min(retryDelay*2, maxRetryDelay)
	}
}

func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)
	c.Subscribe()
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// Subscribe subscribes to the topic of every configured station. Failures are
// logged and the remaining stations are still subscribed.
func (c *MQTTClient) Subscribe() int {
	subscribed := 0
	for _, st := range c.config.Stations {
		token := c.client.Subscribe(st.Topic, 1, c.stationHandler(st.ID))
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("[MQTT] error subscribing to %s: %v", st.Topic, token.Error())
			continue
		}
		log.Printf("[MQTT] subscribed to %s for station %s", st.Topic, st.ID)
		subscribed++
	}
	return subscribed
}

func (c *MQTTClient) stationHandler(stationID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("[MQTT] received sheet from %s (topic: %s, size: %d bytes)", stationID, msg.Topic(), len(payload))
		if len(payload) == 0 {
			log.Printf("[MQTT] empty payload from %s, skipping", stationID)
			return
		}
		if c.handler != nil {
			c.handler(stationID, payload)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// Client returns the underlying client for publishing
func (c *MQTTClient) Client() mqtt.Client {
	return c.client
}
