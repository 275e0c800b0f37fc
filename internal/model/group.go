package model

// Group 帖子分组（由管理员创建）
type Group struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"type:varchar(200);not null" json:"title"`
	Slug        string `gorm:"type:varchar(50);uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
}

func (Group) TableName() string { return "post_groups" }

func (g Group) String() string { return g.Title }
