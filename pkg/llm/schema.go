package llm

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Schema 结构化输出约束（JSON Schema 的 object 子集）
type Schema struct {
	// Name 模式名称，openai 的 json_schema 要求必填
	Name string

	// Description 模式描述
	Description string

	// Properties 按声明顺序排列的字段
	Properties []Property
}

// Property 单个字段
type Property struct {
	Name        string
	Type        string // string, integer, number, boolean, object, array
	Description string
	Required    bool
}

// SchemaFor 从结构体的 json 和 desc tag 生成 Schema
// 所有导出字段都视为必填，除非 json tag 带 omitempty
func SchemaFor(name string, v any) *Schema {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	s := &Schema{Name: name}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		jsonName, omitEmpty := jsonFieldName(field)
		if jsonName == "-" {
			continue
		}
		s.Properties = append(s.Properties, Property{
			Name:        jsonName,
			Type:        typeName(field.Type),
			Description: field.Tag.Get("desc"),
			Required:    !omitEmpty,
		})
	}
	return s
}

// Required 返回必填字段名
func (s *Schema) Required() []string {
	var names []string
	for _, p := range s.Properties {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// MarshalJSON 输出标准 JSON Schema
func (s *Schema) MarshalJSON() ([]byte, error) {
	props := make(map[string]any, len(s.Properties))
	for _, p := range s.Properties {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             s.Required(),
		"additionalProperties": false,
	}
	if s.Description != "" {
		doc["description"] = s.Description
	}
	return json.Marshal(doc)
}

// jsonFieldName 获取字段的 json 名称
// 没有 json tag 时使用字段名（转小写下划线）
func jsonFieldName(field reflect.StructField) (string, bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return toSnakeCase(field.Name), false
	}
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = toSnakeCase(field.Name)
	}
	omitEmpty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty
}

// typeName 获取 JSON Schema 类型名
func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Ptr:
		return typeName(t.Elem())
	default:
		return "object"
	}
}

// toSnakeCase 将驼峰命名转换为下划线命名
func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
