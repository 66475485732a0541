package bridge

import (
	"encoding/json"
	"fmt"
	"sync"

	mqttcommon "patient-tile/common/mqtt"
	"patient-tile/internal/tile"

	"go.uber.org/zap"
)

// Broker MQTT 能力子集（*mqttcommon.Client 满足）
type Broker interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Notifier 通过 MQTT 主题 {prefix}/{contextID}/patient 分发病人变化
// payload 为病人 JSON；空或 null 表示病人被清除
type Notifier struct {
	broker      Broker
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

func NewNotifier(broker Broker, topicPrefix string, qos byte, logger *zap.Logger) *Notifier {
	return &Notifier{
		broker:      broker,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// Topic 上下文对应的主题
func (n *Notifier) Topic(contextID string) string {
	return n.topicPrefix + "/" + contextID + "/patient"
}

// Watch 订阅变化；返回的 unregister 可重复调用
func (n *Notifier) Watch(contextID string, cb func(tile.Patient)) (func(), error) {
	if n == nil || n.broker == nil {
		return nil, ErrUnsupported
	}

	topic := n.Topic(contextID)
	err := n.broker.Subscribe(topic, n.qos, func(_ string, payload []byte) error {
		patient := make(tile.Patient, len(payload))
		copy(patient, payload)
		if patient.Present() && !json.Valid(patient) {
			return fmt.Errorf("%w on %s", ErrInvalidPatient, topic)
		}
		cb(patient)
		return nil
	})
	if err != nil {
		return nil, err
	}

	n.logger.Debug("Watching patient changes", zap.String("topic", topic))

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := n.broker.Unsubscribe(topic); err != nil {
				n.logger.Warn("Failed to unsubscribe patient topic",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		})
	}, nil
}
