package tile

import (
	"bytes"
	"encoding/json"
)

// Patient 桥接端提供的病人对象，内容不做解析，只关心有无
// nil、空白或 JSON null 都视为“没有病人”
type Patient json.RawMessage

// Present 是否存在病人对象
func (p Patient) Present() bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Compact 返回紧凑的 JSON 编码（持久化格式）
func (p Patient) Compact() (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MarshalJSON 让 Patient 作为 json.RawMessage 原样输出
func (p Patient) MarshalJSON() ([]byte, error) {
	if !p.Present() {
		return []byte("null"), nil
	}
	return json.RawMessage(p).MarshalJSON()
}

// UnmarshalJSON 保留原始字节
func (p *Patient) UnmarshalJSON(data []byte) error {
	*p = append((*p)[0:0], data...)
	return nil
}
