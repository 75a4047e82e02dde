package mqtt

import (
	"context"
	"encoding/json"
	"fmt"

	"smartinfra-data/internal/service"

	"go.uber.org/zap"
)

// DetectionBroker ML 管线检测结果的 MQTT 接入。
// 载荷与 HTTP 检测接口一致，支持单条对象或数组两种形式。
type DetectionBroker struct {
	detections service.DetectionService
	logger     *zap.Logger
}

// NewDetectionBroker 创建 DetectionBroker
func NewDetectionBroker(detections service.DetectionService, logger *zap.Logger) *DetectionBroker {
	return &DetectionBroker{
		detections: detections,
		logger:     logger,
	}
}

// detectionMessage MQTT 检测消息格式
type detectionMessage struct {
	MediaID       string   `json:"media_id"`
	DetectedClass string   `json:"detected_class"`
	Confidence    float64  `json:"confidence"`
	BBoxX         float64  `json:"bbox_x"`
	BBoxY         float64  `json:"bbox_y"`
	BBoxWidth     float64  `json:"bbox_width"`
	BBoxHeight    float64  `json:"bbox_height"`
	FrameTime     *float64 `json:"frame_time"`
}

// HandleMessage 处理 MQTT 消息
func (b *DetectionBroker) HandleMessage(topic string, payload []byte) error {
	// 1. 解析：数组或单条对象
	var messages []detectionMessage
	if err := json.Unmarshal(payload, &messages); err != nil {
		var single detectionMessage
		if err := json.Unmarshal(payload, &single); err != nil {
			return fmt.Errorf("failed to unmarshal detection payload: %w", err)
		}
		messages = []detectionMessage{single}
	}

	// 2. 逐条入库，单条失败不中断
	ctx := context.Background()
	for _, msg := range messages {
		if err := b.processMessage(ctx, &msg); err != nil {
			b.logger.Error("failed to process detection message",
				zap.String("topic", topic),
				zap.String("media_id", msg.MediaID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条检测消息
func (b *DetectionBroker) processMessage(ctx context.Context, msg *detectionMessage) error {
	resp, err := b.detections.RecordDetection(ctx, service.RecordDetectionRequest{
		MediaID:       msg.MediaID,
		DetectedClass: msg.DetectedClass,
		Confidence:    msg.Confidence,
		BBoxX:         msg.BBoxX,
		BBoxY:         msg.BBoxY,
		BBoxWidth:     msg.BBoxWidth,
		BBoxHeight:    msg.BBoxHeight,
		FrameTime:     msg.FrameTime,
	})
	if err != nil {
		return err
	}

	b.logger.Debug("detection recorded from mqtt",
		zap.String("detection_id", resp.Detection.DetectionID),
		zap.Bool("promoted", resp.Pothole != nil),
		zap.Bool("auto_verified", resp.AutoVerified),
	)
	return nil
}
