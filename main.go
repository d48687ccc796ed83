package main

import (
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"assessly-backend/internal/auth"
	"assessly-backend/internal/config"
	"assessly-backend/internal/database"
	"assessly-backend/internal/events"
	"assessly-backend/internal/handlers"
	"assessly-backend/internal/middleware"
	"assessly-backend/internal/store"
)

func main() {
	config.Load()

	client, err := database.Connect(config.AppEnv.MongoURI)
	if err != nil {
		log.Fatal(err)
	}

	db := client.Database(config.AppEnv.DBName)

	log.Println("MongoDB connected to:", db.Name())

	if err := database.EnsureUserIndexes(db); err != nil {
		log.Printf("user index warning: %v", err)
	}
	if err := database.EnsureRefreshTokenIndexes(db); err != nil {
		log.Printf("refresh token index warning: %v", err)
	}
	if err := database.EnsureDenylistIndexes(db); err != nil {
		log.Printf("denylist index warning: %v", err)
	}

	producer := events.NewProducer(config.AppEnv.KafkaAddress)
	if producer != nil {
		defer producer.Close()
		log.Println("auth event publishing enabled:", config.AppEnv.KafkaAddress)
	}

	users := store.NewMongoUserStore(db)
	tokens := store.NewMongoRefreshTokenStore(db)
	denylist := store.NewMongoDenylistStore(db)
	svc := auth.NewService(config.AppEnv, users, tokens, denylist, producer)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.AppEnv.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	api := r.Group("/api/auth")
	{
		api.POST("/register", handlers.Register(svc, config.AppEnv))
		api.POST("/login", handlers.Login(svc, config.AppEnv))
		api.GET("/refresh", handlers.Refresh(svc, config.AppEnv))
		api.POST("/logout", handlers.Logout(svc, config.AppEnv))

		api.GET("/me", middleware.RequireAuth(svc, users), handlers.Me(svc))
		api.POST("/password", middleware.RequireAuth(svc, users), handlers.ChangePassword(svc))
		api.GET("/sessions", middleware.RequireAuth(svc, users), handlers.Sessions(svc))
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	r.Run(":" + port)
}
