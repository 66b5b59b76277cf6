package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/km-arc/go-spritze/app/users"
	"github.com/km-arc/go-spritze/framework/app"
	gohttp "github.com/km-arc/go-spritze/framework/http"
	"github.com/km-arc/go-spritze/framework/routing"
)

func main() {
	application, err := app.New() // loads .env automatically
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := application.Register(users.Module{}); err != nil {
		log.Fatalf("register modules: %v", err)
	}
	if err := application.Boot(); err != nil {
		log.Fatalf("boot: %v", err)
	}

	r, err := application.Router()
	if err != nil {
		application.Logger.Fatal("resolve router", zap.Error(err))
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		gohttp.NewResponse(w).Success(map[string]any{"message": "Welcome to " + application.Config.App.Name})
	})

	var routeErr error
	r.Prefix("/api/v1", func(api *routing.Router) {
		routeErr = users.Routes(api, application.Injector, gohttp.WithErrorLogger(application.Logger))
	})
	if routeErr != nil {
		application.Logger.Fatal("mount routes", zap.Error(routeErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		application.Logger.Error("server stopped", zap.Error(err))
	}
}
