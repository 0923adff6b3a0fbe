package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatcore/config"
	"chatcore/internal/handler"
	"chatcore/internal/repository"
	"chatcore/internal/service"
	"chatcore/internal/storage"
	"chatcore/pkg/logger"

	"github.com/gorilla/sessions"
)

func main() {
	v, err := config.Load("config")
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Parse(v)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Options{Level: cfg.Logger.Level, JSON: cfg.Logger.JSON})

	db, err := repository.Open(cfg.DB.DSN)
	if err != nil {
		log.Error("database open failed", "err", err)
		os.Exit(1)
	}

	objects, err := storage.NewLocalObjectStore("data/objects", "/objects")
	if err != nil {
		log.Error("object store init failed", "err", err)
		os.Exit(1)
	}

	userRepo := repository.NewSQLiteUserRepository(db)
	friendRepo := repository.NewSQLiteFriendRepository(db)
	conversationRepo := repository.NewSQLiteConversationRepository(db)
	messageRepo := repository.NewSQLiteMessageRepository(db)

	userService := service.NewUserService(userRepo, log)
	friendService := service.NewFriendService(friendRepo, userRepo, log)
	readService := service.NewReadService(conversationRepo, messageRepo, log)
	conversationService := service.NewConversationService(conversationRepo, messageRepo, friendRepo, userRepo, readService, log)
	messageService := service.NewMessageService(messageRepo, conversationService, readService, objects, cfg.Chat, log)
	feedService := service.NewFeedService(conversationRepo, messageRepo, friendRepo, userRepo, conversationService, objects, log)

	store := sessions.NewCookieStore([]byte(cfg.Session.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   cfg.Session.MaxAge,
	}

	router := handler.NewRouter(
		store,
		handler.NewUserHandler(userService, store),
		handler.NewFriendHandler(friendService),
		handler.NewConversationHandler(conversationService),
		handler.NewMessageHandler(messageService, readService),
		handler.NewFeedHandler(feedService),
	)

	server := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "err", err)
		}
		close(done)
	}()

	log.Info("http server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Error("http server error", "err", err)
		os.Exit(1)
	}
	<-done
}
