package model

import "time"

// OrphanAsset 删除失败、等待清理的图片文件
type OrphanAsset struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)"`
	Ref         string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Reason      string    `gorm:"type:text"`
	Attempts    int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"index"`
	LastTriedAt *time.Time
}

func (OrphanAsset) TableName() string { return "orphan_assets" }
