package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func structValidator() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// 错误信息中使用 json 字段名
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		zh := zh.New()
		uni := ut.New(zh, zh)
		translator, _ = uni.GetTranslator("zh")
		// 注册失败时退回到英文的默认错误信息
		_ = zh_translations.RegisterDefaultTranslations(validate, translator)
	})
	return validate, translator
}

// checkStruct 用结构体标签校验一条记录，把错误追加到 verr 中
func checkStruct(verr *ValidationError, path string, v any) {
	validate, trans := structValidator()

	err := validate.Struct(v)
	if err == nil {
		return
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		verr.add(path, "%v", err)
		return
	}

	for _, fe := range fieldErrors {
		verr.Issues = append(verr.Issues, ValidationIssue{
			Field:   fmt.Sprintf("%s.%s", path, fe.Field()),
			Message: fe.Translate(trans),
		})
	}
}
