package model

import "time"

// TitleMaxLen 标题最大长度
const TitleMaxLen = 200

// Post 帖子，作者创建后不可变更
type Post struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title     string    `json:"title" gorm:"type:varchar(200);not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	AuthorID  string    `json:"author_id" gorm:"type:varchar(36);index:idx_post_author;not null"`
	Author    *User     `json:"author,omitempty" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
	ImageRef  *string   `json:"image_ref" gorm:"type:varchar(255)"`
	Likes     []Like    `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_post_created;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

// HasImage 是否关联了图片
func (p *Post) HasImage() bool { return p.ImageRef != nil && *p.ImageRef != "" }
