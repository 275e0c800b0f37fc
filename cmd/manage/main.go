package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/yatube/config"
	"github.com/d60-Lab/yatube/internal/app"
	"github.com/d60-Lab/yatube/internal/model"
	"github.com/d60-Lab/yatube/internal/service"
	"github.com/d60-Lab/yatube/pkg/database"
	"github.com/d60-Lab/yatube/pkg/logger"
)

func must[T any](v T, err error) T {
	if err != nil {
		fail(err)
	}
	return v
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

const usage = `usage: manage <command> [flags]

commands:
  migrate                         create or update tables
  create-group -title -slug       add a post group
  create-user -username -password add a user
  clear-cache [-server URL]       drop every cached page (memory backend: via the server's admin endpoint)
  seed -users -posts -follows     fill the database with demo data
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cfg := must(config.Load())
	if err := logger.Init(cfg.Log.Level, "console"); err != nil {
		fail(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "migrate":
		db := must(database.InitDB(cfg))
		defer database.Close(db)
		logger.Info("migrated", zap.String("driver", cfg.Database.Driver))

	case "create-group":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		title := fs.String("title", "", "group title")
		slug := fs.String("slug", "", "group slug")
		desc := fs.String("description", "", "group description")
		_ = fs.Parse(args)

		db := must(database.InitDB(cfg))
		defer database.Close(db)
		g := must(app.NewServices(cfg, db).Groups.Create(ctx, service.GroupInput{Title: *title, Slug: *slug, Description: *desc}))
		logger.Info("group created", zap.Uint("id", g.ID), zap.String("slug", g.Slug))

	case "create-user":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password (min 8 chars)")
		_ = fs.Parse(args)

		db := must(database.InitDB(cfg))
		defer database.Close(db)
		u := must(app.NewServices(cfg, db).Auth.SignUp(ctx, service.SignUpInput{
			Username:        *username,
			Email:           *email,
			Password:        *password,
			PasswordConfirm: *password,
		}))
		logger.Info("user created", zap.Uint("id", u.ID), zap.String("username", u.Username))

	case "clear-cache":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		server := fs.String("server", fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port), "running server (memory backend only)")
		_ = fs.Parse(args)

		client := &http.Client{Timeout: 10 * time.Second}
		if err := clearPageCache(ctx, cfg, *server, client); err != nil {
			fail(err)
		}
		logger.Info("page cache cleared", zap.String("backend", cfg.Cache.Backend))

	case "seed":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		nUsers := fs.Int("users", 20, "number of users")
		nPosts := fs.Int("posts", 200, "number of posts")
		nFollows := fs.Int("follows", 100, "number of follow edges")
		seed := fs.Int64("seed", time.Now().UnixNano(), "random seed")
		_ = fs.Parse(args)

		db := must(database.InitDB(cfg))
		defer database.Close(db)
		if err := seedData(ctx, cfg, db, *nUsers, *nPosts, *nFollows, rand.New(rand.NewSource(*seed))); err != nil {
			fail(err)
		}

	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// seedData 批量写入演示数据
func seedData(ctx context.Context, cfg *config.Config, db *gorm.DB, nUsers, nPosts, nFollows int, rnd *rand.Rand) error {
	svcs := app.NewServices(cfg, db)
	start := time.Now()

	groups := []service.GroupInput{
		{Title: "Коты", Slug: "cats", Description: "Всё о котах"},
		{Title: "Путешествия", Slug: "travel", Description: "Заметки из поездок"},
	}
	var groupIDs []uint
	for _, in := range groups {
		g, err := svcs.Groups.GetBySlug(ctx, in.Slug)
		if err != nil {
			if g, err = svcs.Groups.Create(ctx, in); err != nil {
				return err
			}
		}
		groupIDs = append(groupIDs, g.ID)
	}

	hash, err := svcs.Auth.HashPassword("password123")
	if err != nil {
		return err
	}
	suffix := time.Now().UnixNano()
	users := make([]model.User, nUsers)
	for i := range users {
		name := fmt.Sprintf("user%d_%d", i, suffix%100000)
		users[i] = model.User{Username: name, Email: name + "@example.com", PasswordHash: hash}
	}
	if len(users) > 0 {
		if err := db.WithContext(ctx).CreateInBatches(&users, 500).Error; err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}
	if len(users) == 0 {
		return nil
	}

	const batch = 500
	posts := make([]model.Post, 0, batch)
	for i := 0; i < nPosts; i++ {
		p := model.Post{
			Text:     fmt.Sprintf("Тестовый пост номер %d", i),
			AuthorID: users[rnd.Intn(len(users))].ID,
		}
		if rnd.Intn(2) == 0 {
			gid := groupIDs[rnd.Intn(len(groupIDs))]
			p.GroupID = &gid
		}
		posts = append(posts, p)
		if len(posts) == batch || i == nPosts-1 {
			if err := db.WithContext(ctx).Omit("Author", "Group").Create(&posts).Error; err != nil {
				return fmt.Errorf("seed posts: %w", err)
			}
			posts = posts[:0]
		}
	}

	followed := 0
	for i := 0; i < nFollows && len(users) > 1; i++ {
		from := users[rnd.Intn(len(users))]
		to := users[rnd.Intn(len(users))]
		_, err := svcs.Rels.Follow(ctx, from.ID, to.Username)
		if err == nil {
			followed++
		}
	}

	logger.Info("seeded",
		zap.Int("users", len(users)),
		zap.Int("posts", nPosts),
		zap.Int("follows", followed),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
