package mqtt

import (
	"fmt"
	"sync"

	"patient-tile/common/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数类型；返回的错误只记日志
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler mqtt.MessageHandler
}

// Client MQTT客户端封装
// CleanSession 下重连会丢失订阅，Client 记录当前订阅并在重连后恢复
type Client struct {
	client mqtt.Client
	broker string
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient 创建MQTT客户端并连接
func NewClient(cfg *config.MQTTConfig, logger *zap.Logger) (*Client, error) {
	c := &Client{
		broker: cfg.Broker,
		logger: logger,
		subs:   make(map[string]subscription),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectionLostHandler(c.onConnectionLost).
		SetOnConnectHandler(c.onConnect)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return c, nil
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.logger.Warn("MQTT connection lost", zap.String("broker", c.broker), zap.Error(err))
}

// onConnect 首次连接时 subs 为空；重连时逐个恢复
func (c *Client) onConnect(client mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	c.logger.Info("MQTT connected", zap.String("broker", c.broker), zap.Int("resubscribe", len(subs)))
	for topic, sub := range subs {
		// 回调在 paho 内部 goroutine 中，不能阻塞等待 token
		token := client.Subscribe(topic, sub.qos, sub.handler)
		go func(topic string) {
			if token.Wait() && token.Error() != nil {
				c.logger.Warn("MQTT resubscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
			}
		}(topic)
	}
}

// Subscribe 订阅主题
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	cb := func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("Error handling MQTT message",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}
	if token := c.client.Subscribe(topic, qos, cb); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: cb}
	c.mu.Unlock()
	return nil
}

// Unsubscribe 取消订阅
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	if token := c.client.Unsubscribe(topics...); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe %v: %w", topics, token.Error())
	}
	return nil
}

// Subscriptions 当前订阅的主题数
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Disconnect 断开连接，等待 250ms 发送未完成的消息
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

// IsConnected 检查连接状态
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}
