package model

import "time"

// postPreviewLen String() 截取的字符数
const postPreviewLen = 15

// Post 帖子，按 created_at 倒序展示
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index:idx_post_created" json:"pub_date"`
	UpdatedAt time.Time `json:"-"`
	AuthorID  uint      `gorm:"not null;index:idx_post_author" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	GroupID   *uint     `gorm:"index:idx_post_group" json:"group_id,omitempty"`
	Group     *Group    `gorm:"foreignKey:GroupID;constraint:OnDelete:SET NULL" json:"group,omitempty"`
	// Image 相对 media 根目录的路径，空表示无图
	Image string `gorm:"type:varchar(255)" json:"image,omitempty"`
}

func (Post) TableName() string { return "posts" }

func (p Post) String() string {
	r := []rune(p.Text)
	if len(r) > postPreviewLen {
		r = r[:postPreviewLen]
	}
	return string(r)
}

// InGroup reports whether the post belongs to the group with the given id.
func (p Post) InGroup(groupID uint) bool {
	return p.GroupID != nil && *p.GroupID == groupID
}
