package model

import "time"

// Like 点赞（用户 U 赞了帖子 P）
type Like struct {
	ID     string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID string `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:ux_like_user_post"`
	PostID string `json:"post_id" gorm:"type:varchar(36);not null;index:idx_like_post;uniqueIndex:ux_like_user_post"`
	// 复合唯一键，同一用户对同一帖子最多一条
	// ux_like_user_post = (user_id, post_id)
	User      *User     `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at"`
}

func (Like) TableName() string { return "likes" }
