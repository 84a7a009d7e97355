package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/parley-chat/parley/backend/internal/chat"
	"github.com/parley-chat/parley/backend/internal/config"
	"github.com/parley-chat/parley/backend/internal/groups"
	"github.com/parley-chat/parley/backend/internal/handlers"
	"github.com/parley-chat/parley/backend/internal/moderation"
	"github.com/parley-chat/parley/backend/internal/notifications"
	"github.com/parley-chat/parley/backend/internal/realtime"
	"github.com/parley-chat/parley/backend/internal/supabase"
	"github.com/parley-chat/parley/backend/internal/users"
)

func main() {
	// Load configuration from environment
	cfg := config.Load()
	clock := clockwork.NewRealClock()

	// Initialize Supabase client
	db := supabase.NewClient(cfg)

	// Initialize stores
	aggregator := moderation.NewAggregator(cfg.UserID, db)
	inbox := notifications.NewInbox(cfg.UserID, db)
	groupService := groups.NewService(cfg.UserID, db)
	directory := users.NewDirectory(cfg.UserID, db)

	// Connect the change-event feed. A failed dial degrades to snapshot-only
	// state; there is no automatic reconnect.
	var feed chat.Feed
	conn, err := realtime.Dial(cfg.SupabaseURL, cfg.SupabaseKey, clock)
	if err != nil {
		log.Printf("Realtime unavailable, running without live updates: %v", err)
		feed = noFeed{}
	} else {
		defer conn.Close()
		feed = chat.ConnFeed{Conn: conn}
		go func() {
			<-conn.Closed()
			log.Println("Realtime connection closed, local state is now stale")
		}()
	}

	// Assemble and start the session
	session := chat.NewSession(cfg.UserID, db, feed, clock, aggregator, inbox, groupService, directory)
	if err := session.Start(); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer session.Close()

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(session, db)
	moderationHandler := handlers.NewModerationHandler(aggregator)
	notificationHandler := handlers.NewNotificationHandler(inbox)
	groupHandler := handlers.NewGroupHandler(groupService)
	userHandler := handlers.NewUserHandler(directory)

	// Set up router with middleware
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// CORS configuration - reads from CORS_ORIGINS env var
	// Format: comma-separated list of origins, e.g., "http://localhost:5173,https://parley.example.com"
	corsOrigins := getCorsOrigins()
	log.Printf("CORS allowed origins: %v", corsOrigins)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", handlers.HealthCheck)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/conversations", chatHandler.ListConversations)
		r.Route("/conversations/{key}", func(r chi.Router) {
			r.Get("/messages", chatHandler.GetTimeline)
			r.Post("/messages", chatHandler.SendMessage)
			r.Get("/typing", chatHandler.GetTyping)
			r.Post("/typing", chatHandler.SetTyping)
		})
		r.Put("/messages/{id}", chatHandler.EditMessage)
		r.Delete("/messages/{id}", chatHandler.DeleteMessage)
		r.Post("/uploads", chatHandler.UploadAttachment)

		r.Get("/users", userHandler.ListUsers)
		r.Get("/users/{id}/moderation", moderationHandler.GetStatus)
		r.Post("/reports", moderationHandler.SubmitReport)

		r.Get("/notifications", notificationHandler.ListNotifications)
		r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
		r.Post("/notifications/read-all", notificationHandler.MarkAllRead)

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groupHandler.ListGroups)
			r.Post("/", groupHandler.CreateGroup)
			r.Get("/{id}/members", groupHandler.ListMembers)
			r.Post("/{id}/members", groupHandler.AddMember)
		})
	})

	// Start server
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("parley sync daemon starting on %s (user %s)", addr, cfg.UserID)
	log.Fatal(http.ListenAndServe(addr, r))
}

// getCorsOrigins returns allowed CORS origins from environment or defaults
func getCorsOrigins() []string {
	originsEnv := os.Getenv("CORS_ORIGINS")
	if originsEnv == "" {
		// Default to localhost for development
		return []string{"http://localhost:5173", "http://localhost:3000"}
	}

	// Split comma-separated origins and trim whitespace
	origins := strings.Split(originsEnv, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}
	return origins
}

// noFeed is the degraded feed used when the realtime connection cannot be
// established: every subscription fails and the local view stays a
// snapshot.
type noFeed struct{}

func (noFeed) SubscribeChanges(name string, filters []realtime.ChangeFilter, handler func(realtime.Event)) (chat.Subscription, error) {
	return nil, fmt.Errorf("realtime feed unavailable")
}

func (noFeed) SubscribePresence(name string, onSync func(metas []json.RawMessage)) (chat.Presence, error) {
	return nil, fmt.Errorf("realtime feed unavailable")
}
