package domain

import "time"

// RegistrationStatus 测试邮箱的注册状态
type RegistrationStatus string

// SaleStatus 测试邮箱的售卖状态
type SaleStatus string

const (
	RegistrationUnregistered RegistrationStatus = "unregistered"
	RegistrationRegistered   RegistrationStatus = "registered"

	SaleUnsold SaleStatus = "unsold"
	SaleSold   SaleStatus = "sold"
)

// TestMailboxRecord 表示测试邮箱池中的一条预置身份。
//
// 生命周期：批量生成 -> 自动化客户端领取 -> 标记已注册（单向，仅发生一次）。
// 注册后 CreditBalance 可被任意次刷新，且不影响注册/售卖状态。
// 历史数据中 RegistrationStatus/SaleStatus 可能为 NULL，读取时
// 分别视同 unregistered/unsold。
type TestMailboxRecord struct {
	ID               string              `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email            string              `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	VerificationCode string              `json:"verificationCode" gorm:"type:varchar(6);not null"` // 生成时预计算，必须与推导结果一致
	RegStatus        *RegistrationStatus `json:"registrationStatus,omitempty" gorm:"column:registration_status;type:varchar(16);index"`
	SaleState        *SaleStatus         `json:"saleStatus,omitempty" gorm:"column:sale_status;type:varchar(16);index"`
	IsAutoRegistered bool                `json:"isAutoRegistered" gorm:"default:false"`
	Count            string              `json:"count" gorm:"type:varchar(16)"`
	UsageLedgerLink  *string             `json:"usageLedgerLink,omitempty" gorm:"type:varchar(512)"`
	CreditBalance    *int                `json:"creditBalance,omitempty"`
	CreditBalanceAt  *time.Time          `json:"creditBalanceUpdatedAt,omitempty" gorm:"column:credit_balance_updated_at"`
	ClaimedAt        *time.Time          `json:"claimedAt,omitempty"` // 严格领取模式下的领取时间戳

	Remark           string              `json:"remark" gorm:"type:varchar(255)"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// RegistrationStatus 返回规范化的注册状态（NULL 视同 unregistered）。
func (r *TestMailboxRecord) RegistrationStatus() RegistrationStatus {
	if r.RegStatus == nil {
		return RegistrationUnregistered
	}
	return *r.RegStatus
}

// SaleStatus 返回规范化的售卖状态（NULL 视同 unsold）。
func (r *TestMailboxRecord) SaleStatus() SaleStatus {
	if r.SaleState == nil {
		return SaleUnsold
	}
	return *r.SaleState
}

// Available 判断记录是否可被自动化客户端领取。
func (r *TestMailboxRecord) Available() bool {
	return r.RegistrationStatus() == RegistrationUnregistered && r.SaleStatus() == SaleUnsold
}
