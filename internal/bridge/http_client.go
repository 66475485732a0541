package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"patient-tile/internal/tile"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ContextHeader 桥接上下文请求头（值为会话 ID）
const ContextHeader = "X-Bridge-Context"

const patientPath = "/api/v1/patient"

// ErrInvalidPatient 桥接返回的病人不是合法 JSON
var ErrInvalidPatient = errors.New("invalid patient payload")

// StatusError 桥接服务返回非预期状态码
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bridge returned status %d", e.StatusCode)
}

// HTTPClient 桥接服务 HTTP 客户端
type HTTPClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewHTTPClient 创建桥接客户端
func NewHTTPClient(baseURL string, timeout time.Duration, retries int, logger *zap.Logger) *HTTPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	return &HTTPClient{
		httpClient: client,
		logger:     logger,
	}
}

// FetchPatient 获取上下文中的当前病人
// 200 + JSON => 病人；200 + null、204、404 => 没有病人
// 200 + 非法 JSON => ErrInvalidPatient；其他状态 => StatusError
func (c *HTTPClient) FetchPatient(ctx context.Context, contextID string) (tile.Patient, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader(ContextHeader, contextID).
		Get(patientPath)
	if err != nil {
		return nil, fmt.Errorf("failed to call bridge: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		patient := tile.Patient(resp.Body())
		if !patient.Present() {
			return nil, nil
		}
		if !json.Valid(patient) {
			return nil, ErrInvalidPatient
		}
		c.logger.Debug("Fetched patient from bridge",
			zap.String("context_id", contextID),
			zap.Int("payload_size", len(patient)),
		)
		return patient, nil
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode()}
	}
}
