package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/d60-Lab/yatube/internal/model"
)

func BenchmarkFollowWrite(b *testing.B) {
	db := setupDB(b)
	followRepo := NewFollowRepository(db)
	ctx := context.Background()

	// 预创建部分用户
	users := make([]model.User, 1000)
	for i := range users {
		users[i] = model.User{Username: fmt.Sprintf("u%04d", i), Email: fmt.Sprintf("u%04d@example.com", i), PasswordHash: "p"}
	}
	if err := db.Create(&users).Error; err != nil {
		b.Fatalf("seed users: %v", err)
	}

	rnd := rand.New(rand.NewSource(42))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := users[rnd.Intn(len(users))].ID
		to := users[rnd.Intn(len(users))].ID
		if from == to {
			continue
		}
		_ = followRepo.Create(ctx, from, to)
	}
}

func BenchmarkFeedQuery(b *testing.B) {
	db := setupDB(b)
	followRepo := NewFollowRepository(db)
	postRepo := NewPostRepository(db)
	ctx := context.Background()

	// 构造：reader 关注 N 个作者，每个作者 5 篇帖子
	const N = 200
	reader := model.User{Username: "reader", PasswordHash: "p"}
	if err := db.Create(&reader).Error; err != nil {
		b.Fatalf("seed reader: %v", err)
	}
	for i := 0; i < N; i++ {
		a := model.User{Username: fmt.Sprintf("author%d", i), PasswordHash: "p"}
		_ = db.Create(&a).Error
		_ = followRepo.Create(ctx, reader.ID, a.ID)
		for j := 0; j < 5; j++ {
			_ = postRepo.Create(ctx, &model.Post{Text: fmt.Sprintf("post %d/%d", i, j), AuthorID: a.ID})
		}
	}

	b.ResetTimer()
	b.Run("ListFeed", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = postRepo.List(ctx, PostFilter{FollowerID: reader.ID}, 0, 10)
		}
	})
	b.Run("ListFollowings", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = followRepo.ListFollowings(ctx, reader.ID, 0, 50)
		}
	})
}
