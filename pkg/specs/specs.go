// Package specs 定义链路的最终产物并负责校验第二阶段的输出
package specs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KodaTao/PromptChain/pkg/llm"
)

// Record 经过校验的硬件规格
type Record struct {
	CPU     string `json:"cpu" desc:"CPU model / cores / relevant CPU details"`
	Memory  string `json:"memory" desc:"RAM size (and relevant details)"`
	Storage string `json:"storage" desc:"Storage size/type (SSD/HDD/NVMe, etc.)"`
}

// JSON 返回两空格缩进的 JSON
func (r Record) JSON() string {
	b, _ := json.MarshalIndent(r, "", "  ")
	return string(b)
}

// Schema 返回 Record 的结构化输出约束
func Schema() *llm.Schema {
	s := llm.SchemaFor("specs", Record{})
	s.Description = "Technical specifications extracted from a product description."
	return s
}

// 校验失败原因
const (
	ReasonMalformed      = "malformed"
	ReasonSchemaMismatch = "schema_mismatch"
)

// requiredFields 必填字段，按此顺序检查
var requiredFields = []string{"cpu", "memory", "storage"}

// ValidationError 第二阶段输出不符合约束
type ValidationError struct {
	Reason string
	Field  string // 仅 schema_mismatch 时填写
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s (field %q): %s", e.Reason, e.Field, e.Detail)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Reason, e.Detail)
}

// Validate 把文本解析为 Record
// 先去掉 markdown 代码块包装，再按通用 JSON 对象解析并逐个检查必填字段；多余字段忽略
func Validate(text string) (Record, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &obj); err != nil {
		return Record{}, &ValidationError{Reason: ReasonMalformed, Detail: err.Error()}
	}
	if obj == nil {
		return Record{}, &ValidationError{Reason: ReasonMalformed, Detail: "not a JSON object"}
	}

	values := make(map[string]string, len(requiredFields))
	for _, field := range requiredFields {
		raw, ok := obj[field]
		if !ok {
			return Record{}, &ValidationError{Reason: ReasonSchemaMismatch, Field: field, Detail: "missing"}
		}
		s, ok := raw.(string)
		if !ok {
			return Record{}, &ValidationError{
				Reason: ReasonSchemaMismatch,
				Field:  field,
				Detail: fmt.Sprintf("expected string, got %s", jsonKind(raw)),
			}
		}
		if strings.TrimSpace(s) == "" {
			return Record{}, &ValidationError{Reason: ReasonSchemaMismatch, Field: field, Detail: "empty"}
		}
		values[field] = s
	}

	return Record{
		CPU:     values["cpu"],
		Memory:  values["memory"],
		Storage: values["storage"],
	}, nil
}

// StripCodeFence 去掉 LLM 常见的 markdown 代码块包装
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ```     → {"a": 1}
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// 去掉语言标记（json、JSON 等），只在标记后紧跟换行或空格时生效
	if i := strings.IndexAny(s, "\r\n \t{["); i > 0 && isFenceTag(s[:i]) {
		s = s[i:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isFenceTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
