package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/dushixiang/apmview/internal/protocol"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// 字段路径
const (
	PathServiceName           = "service.name"
	PathServiceEnvironment    = "service.environment"
	PathTransactionSampleRate = "settings.transaction_sample_rate"
	PathCaptureBody           = "settings.capture_body"
	PathTransactionMaxSpans   = "settings.transaction_max_spans"
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ServiceValidity service 部分的字段有效性
type ServiceValidity struct {
	Name        bool `json:"name"`
	Environment bool `json:"environment"`
}

// SettingsValidity settings 部分的字段有效性
type SettingsValidity struct {
	TransactionSampleRate bool `json:"transaction_sample_rate"`
	CaptureBody           bool `json:"capture_body"`
	TransactionMaxSpans   bool `json:"transaction_max_spans"`
}

// Validity 按字段的有效性，用于表单内联提示
type Validity struct {
	Service  ServiceValidity  `json:"service"`
	Settings SettingsValidity `json:"settings"`
}

// Result 校验结果，不会整体拒绝，而是逐字段报告
type Result struct {
	Payload  protocol.AgentConfigurationPayload `json:"-"`
	Errors   []FieldError                       `json:"errors"`
	Validity Validity                           `json:"validity"`
}

// Valid 所有字段均有效
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// ByPath 将错误列表按点分路径索引
func (r *Result) ByPath() map[string]FieldError {
	m := make(map[string]FieldError, len(r.Errors))
	for _, e := range r.Errors {
		if _, ok := m[e.Path]; !ok {
			m[e.Path] = e
		}
	}
	return m
}

func (r *Result) add(path, message string) {
	r.Errors = append(r.Errors, FieldError{Path: path, Message: message})
}

func (r *Result) buildValidity() {
	byPath := r.ByPath()
	invalid := func(path string) bool {
		_, ok := byPath[path]
		return ok
	}
	r.Validity = Validity{
		Service: ServiceValidity{
			Name:        !invalid(PathServiceName),
			Environment: !invalid(PathServiceEnvironment),
		},
		Settings: SettingsValidity{
			TransactionSampleRate: !invalid(PathTransactionSampleRate),
			CaptureBody:           !invalid(PathCaptureBody),
			TransactionMaxSpans:   !invalid(PathTransactionMaxSpans),
		},
	}
}

// AgentConfigValidator 探针配置校验器
type AgentConfigValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// NewAgentConfigValidator 创建校验器
func NewAgentConfigValidator() (*AgentConfigValidator, error) {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("precision3", validatePrecision3); err != nil {
		return nil, err
	}
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}
	err := v.RegisterTranslation("precision3", trans,
		func(ut ut.Translator) error {
			return ut.Add("precision3", "{0} must have at most 3 decimal places", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("precision3", fe.Field())
			return t
		})
	if err != nil {
		return nil, err
	}

	return &AgentConfigValidator{validate: v, trans: trans}, nil
}

func validatePrecision3(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	scaled := f * 1000
	return math.Abs(scaled-math.Round(scaled)) < 1e-9
}

type rawPayload struct {
	Service  json.RawMessage `json:"service"`
	Settings json.RawMessage `json:"settings"`
}

type rawService struct {
	Name        json.RawMessage `json:"name"`
	Environment json.RawMessage `json:"environment"`
}

type rawSettings struct {
	TransactionSampleRate json.RawMessage `json:"transaction_sample_rate"`
	CaptureBody           json.RawMessage `json:"capture_body"`
	TransactionMaxSpans   json.RawMessage `json:"transaction_max_spans"`
}

// Decode 解析并校验请求体
// 类型错误与规则错误都映射到对应的字段路径；数值字段接受数字或数字字符串
func (v *AgentConfigValidator) Decode(data []byte) *Result {
	r := &Result{}

	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		r.add("", "request body must be a JSON object")
		r.buildValidity()
		return r
	}

	var service rawService
	if err := decodeObject(raw.Service, &service); err != nil {
		r.add(PathServiceName, "service must be an object")
	}
	var settings rawSettings
	if err := decodeObject(raw.Settings, &settings); err != nil {
		r.add(PathCaptureBody, "settings must be an object")
	}

	p := &r.Payload
	if s, err := decodeString(service.Name); err != nil {
		r.add(PathServiceName, "name must be a string")
	} else {
		p.Service.Name = s
	}
	if s, err := decodeString(service.Environment); err != nil {
		r.add(PathServiceEnvironment, "environment must be a string")
	} else {
		p.Service.Environment = s
	}
	if s, err := decodeString(settings.CaptureBody); err != nil {
		r.add(PathCaptureBody, "capture_body must be a string")
	} else {
		p.Settings.CaptureBody = s
	}
	if f, err := decodeNumber(settings.TransactionSampleRate); err != nil {
		r.add(PathTransactionSampleRate, "transaction_sample_rate must be a number")
	} else {
		p.Settings.TransactionSampleRate = f
	}
	if f, err := decodeNumber(settings.TransactionMaxSpans); err != nil || (f != nil && *f != math.Trunc(*f)) {
		r.add(PathTransactionMaxSpans, "transaction_max_spans must be an integer")
	} else if f != nil {
		n := int(*f)
		p.Settings.TransactionMaxSpans = &n
	}

	// 已有类型错误的字段不再重复报告规则错误
	typeErrors := r.ByPath()
	for _, fe := range v.check(*p) {
		if _, ok := typeErrors[fe.Path]; ok {
			continue
		}
		r.Errors = append(r.Errors, fe)
	}
	r.buildValidity()
	return r
}

// Check 校验已解析的请求体
func (v *AgentConfigValidator) Check(p protocol.AgentConfigurationPayload) *Result {
	r := &Result{Payload: p, Errors: v.check(p)}
	r.buildValidity()
	return r
}

func (v *AgentConfigValidator) check(p protocol.AgentConfigurationPayload) []FieldError {
	err := v.validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Path: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Path:    trimRoot(fe.Namespace()),
			Message: fe.Translate(v.trans),
		})
	}
	return out
}

// trimRoot 去掉命名空间开头的结构体名
func trimRoot(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeObject(raw json.RawMessage, dst any) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func decodeString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func decodeNumber(raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &f, nil
}
