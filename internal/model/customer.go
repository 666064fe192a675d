package model

import "time"

// Customer 以 LINE user id 作为外部身份，唯一索引保证同一身份只有一行。
type Customer struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LineUserID   string `gorm:"size:64;uniqueIndex;not null" json:"line_user_id"`
	DisplayName  string `gorm:"size:128" json:"display_name"`
	IsSubscribed bool   `gorm:"not null;default:true;index" json:"is_subscribed"`
}

func (Customer) TableName() string { return "customers" }

// Admin 后台管理员。PasswordHash 为 bcrypt 结果，不对外输出。
type Admin struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username     string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	FullName     string `gorm:"size:128" json:"full_name"`
	Role         string `gorm:"size:32;not null;default:'staff'" json:"role"`
	IsActive     bool   `gorm:"not null;default:true" json:"is_active"`
}

func (Admin) TableName() string { return "admins" }
