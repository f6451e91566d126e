package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *AgentConfigValidator {
	v, err := NewAgentConfigValidator()
	require.NoError(t, err)
	return v
}

func TestDecodeValid(t *testing.T) {
	v := newValidator(t)
	r := v.Decode([]byte(`{
		"service": {"name": "opbeans-go", "environment": "production"},
		"settings": {"transaction_sample_rate": 0.25, "capture_body": "errors", "transaction_max_spans": 500}
	}`))

	require.True(t, r.Valid(), "%v", r.Errors)
	assert.Equal(t, "opbeans-go", r.Payload.Service.Name)
	assert.Equal(t, "production", r.Payload.Service.Environment)
	require.NotNil(t, r.Payload.Settings.TransactionSampleRate)
	assert.Equal(t, 0.25, *r.Payload.Settings.TransactionSampleRate)
	require.NotNil(t, r.Payload.Settings.TransactionMaxSpans)
	assert.Equal(t, 500, *r.Payload.Settings.TransactionMaxSpans)
	assert.True(t, r.Validity.Settings.CaptureBody)
}

func TestDecodeNumericStrings(t *testing.T) {
	v := newValidator(t)
	r := v.Decode([]byte(`{
		"service": {"name": "svc"},
		"settings": {"transaction_sample_rate": "0.5", "capture_body": "off", "transaction_max_spans": ""}
	}`))

	require.True(t, r.Valid(), "%v", r.Errors)
	assert.Equal(t, 0.5, *r.Payload.Settings.TransactionSampleRate)
	assert.Nil(t, r.Payload.Settings.TransactionMaxSpans)
}

func TestDecodeFieldErrors(t *testing.T) {
	v := newValidator(t)

	t.Run("采样率超出范围", func(t *testing.T) {
		r := v.Decode([]byte(`{"service":{"name":"svc"},"settings":{"transaction_sample_rate":1.5,"capture_body":"all"}}`))
		assert.False(t, r.Valid())
		assert.False(t, r.Validity.Settings.TransactionSampleRate)
		assert.True(t, r.Validity.Settings.CaptureBody)
		assert.True(t, r.Validity.Service.Name)
		assert.Contains(t, r.ByPath(), PathTransactionSampleRate)
	})

	t.Run("采样率精度", func(t *testing.T) {
		r := v.Decode([]byte(`{"service":{"name":"svc"},"settings":{"transaction_sample_rate":0.1234,"capture_body":"all"}}`))
		require.Contains(t, r.ByPath(), PathTransactionSampleRate)
		assert.Contains(t, r.ByPath()[PathTransactionSampleRate].Message, "3 decimal places")
	})

	t.Run("capture_body 取值", func(t *testing.T) {
		r := v.Decode([]byte(`{"service":{"name":"svc"},"settings":{"capture_body":"sometimes"}}`))
		assert.False(t, r.Validity.Settings.CaptureBody)
		assert.True(t, r.Validity.Settings.TransactionSampleRate)
	})

	t.Run("缺少服务名", func(t *testing.T) {
		r := v.Decode([]byte(`{"service":{},"settings":{"capture_body":"off"}}`))
		assert.False(t, r.Validity.Service.Name)
		assert.True(t, r.Validity.Service.Environment)
	})

	t.Run("类型错误只报告一次", func(t *testing.T) {
		r := v.Decode([]byte(`{"service":{"name":"svc"},"settings":{"capture_body":"off","transaction_max_spans":"many"}}`))
		assert.Len(t, r.Errors, 1)
		assert.Equal(t, PathTransactionMaxSpans, r.Errors[0].Path)
	})

	t.Run("最大 span 数需为整数", func(t *testing.T) {
		r := v.Decode([]byte(`{"service":{"name":"svc"},"settings":{"capture_body":"off","transaction_max_spans":1.5}}`))
		assert.False(t, r.Validity.Settings.TransactionMaxSpans)
	})

	t.Run("最大 span 数上限", func(t *testing.T) {
		r := v.Decode([]byte(`{"service":{"name":"svc"},"settings":{"capture_body":"off","transaction_max_spans":32001}}`))
		assert.False(t, r.Validity.Settings.TransactionMaxSpans)
	})

	t.Run("非 JSON", func(t *testing.T) {
		r := v.Decode([]byte(`not json`))
		assert.False(t, r.Valid())
	})
}
