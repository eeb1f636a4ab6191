// Package prompt 提供提示词模板
// 模板使用 text/template 语法，且只允许一个命名占位符，例如 {{.text_input}}
package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"text/template/parse"

	"github.com/KodaTao/PromptChain/pkg/prompt/templates"
)

// Template 只含一个命名占位符的不可变模板
type Template struct {
	name        string
	placeholder string
	tmpl        *template.Template
}

// New 解析模板
// 模板必须恰好包含一个命名占位符，且不能包含 if/range 等其他动作
func New(name, text string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &TemplateError{Template: name, Err: err}
	}

	fields := make(map[string]struct{})
	if tmpl.Tree != nil && tmpl.Tree.Root != nil {
		if err := collectPlaceholders(tmpl.Tree.Root, fields); err != nil {
			return nil, &TemplateError{Template: name, Err: err}
		}
	}
	if len(fields) != 1 {
		return nil, &TemplateError{
			Template: name,
			Err:      fmt.Errorf("%w: found %d", ErrPlaceholderCount, len(fields)),
		}
	}

	var placeholder string
	for f := range fields {
		placeholder = f
	}

	return &Template{name: name, placeholder: placeholder, tmpl: tmpl}, nil
}

// MustNew 解析模板，失败时 panic
// 仅用于包级别的内置模板
func MustNew(name, text string) *Template {
	t, err := New(name, text)
	if err != nil {
		panic(err)
	}
	return t
}

// Name 返回模板名称
func (t *Template) Name() string {
	return t.name
}

// Placeholder 返回占位符名称
func (t *Template) Placeholder() string {
	return t.placeholder
}

// Render 用 value 替换占位符
func (t *Template) Render(value string) (string, error) {
	return t.RenderMap(map[string]string{t.placeholder: value})
}

// RenderMap 按名称替换占位符
// 占位符没有对应的值时返回错误，不会原样输出
func (t *Template) RenderMap(values map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, values); err != nil {
		return "", &TemplateError{Template: t.name, Err: fmt.Errorf("%w: %v", ErrUnresolved, err)}
	}
	return buf.String(), nil
}

// collectPlaceholders 收集 {{.name}} 形式的占位符，遇到其他动作返回错误
func collectPlaceholders(node parse.Node, fields map[string]struct{}) error {
	switch n := node.(type) {
	case *parse.ListNode:
		for _, child := range n.Nodes {
			if err := collectPlaceholders(child, fields); err != nil {
				return err
			}
		}
	case *parse.TextNode, *parse.CommentNode:
	case *parse.ActionNode:
		if n.Pipe == nil || len(n.Pipe.Decl) > 0 || len(n.Pipe.Cmds) != 1 || len(n.Pipe.Cmds[0].Args) != 1 {
			return fmt.Errorf("%w: %s", ErrUnsupportedAction, n.String())
		}
		field, ok := n.Pipe.Cmds[0].Args[0].(*parse.FieldNode)
		if !ok || len(field.Ident) != 1 {
			return fmt.Errorf("%w: %s", ErrUnsupportedAction, n.String())
		}
		fields[field.Ident[0]] = struct{}{}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, node.String())
	}
	return nil
}

// 内置模板
var (
	Extract   = MustNew("extract", templates.ExtractSpecs)
	Transform = MustNew("transform", templates.TransformSpecs)
)

// TemplateError 模板解析或渲染错误
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// 错误定义
var (
	ErrPlaceholderCount  = errors.New("template must contain exactly one named placeholder")
	ErrUnsupportedAction = errors.New("unsupported template action")
	ErrUnresolved        = errors.New("unresolved placeholder")
)
