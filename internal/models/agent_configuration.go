package models

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/dushixiang/apmview/internal/protocol"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AgentConfiguration 探针中心化配置
type AgentConfiguration struct {
	ID                 string                                          `gorm:"primaryKey" json:"id"`                           // 配置ID (UUID)
	ServiceName        string                                          `gorm:"index;not null" json:"serviceName"`              // 服务名
	ServiceEnvironment string                                          `gorm:"index" json:"serviceEnvironment,omitempty"`      // 环境，为空表示所有环境
	AgentName          string                                          `json:"agentName,omitempty"`                            // 探针类型，如 go/java/nodejs
	Settings           datatypes.JSONType[protocol.AgentConfigSettings] `json:"settings"`                                       // 配置项
	Etag               string                                          `gorm:"index" json:"etag"`                              // 配置内容摘要
	AppliedByAgent     bool                                            `json:"appliedByAgent"`                                 // 探针是否已应用当前版本
	CreatedAt          int64                                           `json:"createdAt"`                                      // 创建时间（毫秒）
	UpdatedAt          int64                                           `json:"updatedAt" gorm:"autoUpdateTime:milli"`          // 更新时间（毫秒）
}

func (AgentConfiguration) TableName() string {
	return "agent_configurations"
}

// BeforeCreate GORM钩子：设置创建时间
func (c *AgentConfiguration) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	return nil
}

// Payload 还原为请求体结构
func (c *AgentConfiguration) Payload() protocol.AgentConfigurationPayload {
	return protocol.AgentConfigurationPayload{
		Service: protocol.AgentConfigService{
			Name:        c.ServiceName,
			Environment: c.ServiceEnvironment,
		},
		Settings: c.Settings.Data(),
	}
}

// ComputeEtag 服务与配置项的 SHA-1 摘要，内容不变则 etag 不变
func (c *AgentConfiguration) ComputeEtag() string {
	b, _ := json.Marshal(c.Payload())
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
