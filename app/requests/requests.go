// Package requests 处理请求数据和表单验证
package requests

import (
	"fmt"
	"net/url"

	"github.com/thedevsaddam/govalidator"
)

// ValidationError 自定义验证错误
type ValidationError struct {
	Errors url.Values
}

// Error 实现 error 接口
func (v ValidationError) Error() string {
	return fmt.Sprintf("验证错误: %v", v.Errors)
}

// First 取第一条验证消息，面向只展示单条文案的调用方
func (v ValidationError) First() string {
	for _, msgs := range v.Errors {
		if len(msgs) > 0 {
			return msgs[0]
		}
	}
	return v.Error()
}

// ValidateStruct 通用的结构体验证函数
func ValidateStruct(data interface{}, rules govalidator.MapData, messages govalidator.MapData) error {
	opts := govalidator.Options{
		Data:          data,
		Rules:         rules,
		TagIdentifier: "valid", // 模型中的 Struct 标签标识符
		Messages:      messages,
	}

	if errs := govalidator.New(opts).ValidateStruct(); len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}
