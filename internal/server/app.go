package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/farellandr/showticket/config"
	"github.com/farellandr/showticket/internal/artifacts"
	"github.com/farellandr/showticket/internal/locking"
	"github.com/farellandr/showticket/internal/log"
	"github.com/farellandr/showticket/internal/notify"
	"github.com/farellandr/showticket/internal/payments"
	"github.com/farellandr/showticket/internal/repository"
	"github.com/farellandr/showticket/internal/services"
	"github.com/farellandr/showticket/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// App is the wired application. Commands use the parts they need.
type App struct {
	Config      *config.Config
	Store       repository.Store
	Admin       *services.Admin
	Fulfillment *services.Fulfillment
	Expirer     *services.Expirer
	Engine      *gin.Engine

	// router is nil when notifications are not streamed through redis.
	router *message.Router
	redis  *redis.Client
}

func newGateway(cfg *config.Config) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case payments.ProviderPagBank:
		return payments.NewPagBankGateway(cfg.PagBank, &http.Client{Timeout: 20 * time.Second}), nil
	case payments.ProviderXendit:
		return payments.NewXenditGateway(config.InitXenditClient(cfg.Xendit), cfg.Xendit.Timeout), nil
	}
	return nil, fmt.Errorf("%w: %s", payments.ErrUnknownProvider, cfg.PaymentProvider)
}

// newNormalizers accepts PagBank always and Xendit once its callback token
// is configured, so notifications for older charges still land after a
// provider switch.
func newNormalizers(cfg *config.Config) payments.Normalizers {
	list := []payments.Normalizer{payments.NewPagBankNormalizer(cfg.PagBank.WebhookToken)}
	if cfg.Xendit.CallbackToken != "" {
		list = append(list, payments.NewXenditNormalizer(cfg.Xendit.CallbackToken))
	}
	return payments.NewNormalizers(list...)
}

func newObjectStore(cfg *config.Config) (services.ObjectStore, string, error) {
	if cfg.StorageDriver == config.StorageFTP {
		return storage.NewFTPStore(cfg.FTP), "", nil
	}
	local, err := storage.NewLocalStore(cfg.StorageDir, cfg.StoragePublicBase)
	if err != nil {
		return nil, "", err
	}
	return local, local.Dir(), nil
}

func newMailer(cfg *config.Config) notify.Mailer {
	if cfg.SMTP.Enabled() {
		return notify.NewSMTPMailer(cfg.SMTP)
	}
	return notify.LogMailer{}
}

// Build wires the application against the given store. The caller owns
// the database behind it.
func Build(cfg *config.Config, store repository.Store) (*App, error) {
	gateway, err := newGateway(cfg)
	if err != nil {
		return nil, err
	}
	objects, filesDir, err := newObjectStore(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Store: store, redis: config.InitRedis(cfg)}
	links := services.Links{BaseURL: cfg.BaseURL}
	consumer := notify.NewConsumer(store, newMailer(cfg))
	watermillLogger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	var (
		notifier notify.Notifier = notify.LogNotifier{}
		locker   services.Locker = locking.NewLocalLocker()
	)
	switch {
	case app.redis != nil:
		pub, err := notify.NewRedisPublisher(app.redis, watermillLogger)
		if err != nil {
			return nil, err
		}
		sub, err := notify.NewRedisSubscriber(app.redis, watermillLogger)
		if err != nil {
			return nil, err
		}
		if app.router, err = notify.NewRouter(sub, consumer, watermillLogger); err != nil {
			return nil, err
		}
		notifier = notify.NewPublisher(pub)
		locker = locking.NewRedisLocker(app.redis)
	case cfg.SMTP.Enabled():
		notifier = notify.NewDirect(consumer)
	}

	app.Fulfillment = services.NewFulfillment(store, artifacts.NewRenderer(), objects, notifier, links)
	settlement := services.NewSettlement(store, app.Fulfillment, notifier, links)
	app.Admin = services.NewAdmin(store, settlement, app.Fulfillment, notifier, links)
	app.Expirer = services.NewExpirer(store)

	checkout := services.NewCheckout(store, gateway, locker, notifier, services.CheckoutConfig{
		Currency:     cfg.Currency,
		PaymentTTL:   cfg.PaymentTTL,
		DedupeWindow: cfg.DedupeWindow,
		Links:        links,
	})

	app.Engine = New(Deps{
		Store:      store,
		Checkout:   checkout,
		Queries:    services.NewQueries(store, links),
		Reconciler: services.NewReconciler(store, newNormalizers(cfg), settlement),
		Admin:      app.Admin,
		Catalog:    services.NewCatalog(store),
		Links:      links,
		JWTSecret:  cfg.JWTSecret,
		FilesDir:   filesDir,
	})
	return app, nil
}

// Run serves HTTP and, with redis, the notification worker until ctx ends.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{Addr: ":" + a.Config.Port, Handler: a.Engine}
	g, ctx := errgroup.WithContext(ctx)

	if a.router != nil {
		g.Go(func() error {
			return a.router.Run(ctx)
		})
	}

	g.Go(func() error {
		if a.router != nil {
			<-a.router.Running()
		}
		logrus.WithField("addr", srv.Addr).Info("Starting HTTP server")
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() error {
	var errs []error
	if a.router != nil {
		errs = append(errs, a.router.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
