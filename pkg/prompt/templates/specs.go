// Package templates 提供所有提示词模板
// 模板统一管理，方便其他模块引用和定制
package templates

// ExtractSpecs 第一阶段：从自由文本中提取技术规格
const ExtractSpecs = `Extract the technical specifications from the following text:

{{.text_input}}

Return only the extracted specs as concise bullet points.`

// TransformSpecs 第二阶段：把提取结果转换为 JSON
const TransformSpecs = `Transform the following specifications into a JSON object with 'cpu', 'memory', and 'storage' as keys:

{{.specifications}}`

// JSONOnlyInstruction Provider 不支持原生结构化输出时追加到第二阶段提示词末尾
const JSONOnlyInstruction = `

Return only valid JSON, no markdown or extra text.`
