package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/juanxtache-cmyk/gameorki-backend/auth"
)

type envConfig struct {
	signingKey string
	issuer     string
	audience   []string
}

func (c envConfig) GetSigningKey() string   { return c.signingKey }
func (c envConfig) GetTokenExpiration() int { return auth.DefaultTokenExpiration }
func (c envConfig) GetIssuer() string       { return c.issuer }
func (c envConfig) GetAudience() []string   { return c.audience }
func (c envConfig) GetContextKey() string   { return auth.DefaultContextKey }
func (c envConfig) GetAuthScheme() string   { return auth.BearerScheme }

func loadConfig() envConfig {
	cfg := envConfig{
		signingKey: os.Getenv("JWT_SECRET"),
		issuer:     envOr("JWT_ISSUER", "gameorki"),
	}

	if raw := os.Getenv("JWT_AUDIENCE"); raw != "" {
		cfg.audience = strings.Split(raw, ",")
	}

	if cfg.signingKey == "" {
		log.Fatal("JWT_SECRET is required")
	}

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func openDatabase(ctx context.Context) (*bun.DB, error) {
	dsn := envOr("DB_PATH", "file:gameorki.db?cache=shared&_pragma=foreign_keys(1)")

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().
		Model((*auth.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

func buildMailer() auth.Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return auth.NoopMailer{}
	}

	return &auth.SMTPMailer{
		Host:     host,
		Port:     envOr("SMTP_PORT", "587"),
		From:     envOr("SMTP_FROM", "no-reply@gameorki.app"),
		Username: os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment")
	}

	ctx := context.Background()
	cfg := loadConfig()

	db, err := openDatabase(ctx)
	if err != nil {
		log.Fatalf("database setup failed: %v", err)
	}
	defer db.Close()

	repo := auth.NewRepositoryManager(db)
	auther := auth.NewAuthenticator(repo, cfg)
	controller := auth.NewAuthController(repo, auther, auther.TokenService(), buildMailer())

	app := fiber.New(fiber.Config{
		AppName:      "gameorki-backend",
		ErrorHandler: auth.NewErrorHandler(nil),
	})

	auth.RegisterAuthRoutes(app, controller)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	addr := ":" + envOr("PORT", "8080")
	if err := app.Listen(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
