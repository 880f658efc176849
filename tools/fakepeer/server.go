package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Thejuampi/amqp-client-go/amqp/wsengine"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// serve runs the peer on listener until ctx is canceled, then stops accepting,
// disconnects every live connection and returns.
func serve(ctx context.Context, listener net.Listener, config Config, logger zerolog.Logger) error {
	p := newPeer(config, logger)
	mux := http.NewServeMux()
	mux.Handle(config.Path, wsengine.NewHandler(p.accept, wsengine.Options{Logger: &logger}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: shutdownTimeout}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info().Str("addr", listener.Addr().String()).Str("path", config.Path).
			Bool("anonymous_relay", config.AnonymousRelay).Msg("fakepeer listening")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		p.disconnectAll()
		logger.Info().Msg("fakepeer stopped")
		return err
	})
	return group.Wait()
}
