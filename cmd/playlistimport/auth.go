package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"playlistimport/internal/catalog"
)

const (
	oauthTimeout         = 5 * time.Minute
	oauthShutdownTimeout = 5 * time.Second
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "run the authorization flow and persist a token, without importing anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := catalog.NewClient(config.Catalog, config.Concurrency.ConcurrencyLimit, nil, logger)
			defer client.Close()

			if err := client.Authenticate(cmd.Context()); err == nil {
				fmt.Println("already authorized; cached token is valid")
				return nil
			}

			if err := runInteractiveAuth(cmd.Context(), client); err != nil {
				return newExitError(exitConfigOrAuth, fmt.Errorf("authorization failed: %w", err))
			}
			fmt.Println("authorization successful; token cached for future runs")
			return nil
		},
	}
}

// runInteractiveAuth opens a temporary local HTTP server to receive the OAuth redirect, prints
// the authorization URL for the operator to visit, and blocks until the callback arrives, an
// error is reported, the flow times out, or ctx is canceled.
func runInteractiveAuth(ctx context.Context, client *catalog.Client) error {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	server := startCallbackServer(codeChan, errChan)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), oauthShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down oauth callback server", zap.Error(err))
		}
	}()

	authURL, err := client.AuthURL()
	if err != nil {
		return err
	}

	fmt.Println("\nSpotify authorization required.")
	fmt.Println("Visit the following URL to authorize this application:")
	fmt.Printf("\n  %s\n\n", authURL)
	fmt.Println("Waiting for authorization...")

	select {
	case code := <-codeChan:
		return client.CompleteAuth(ctx, code, pendingCallbackState)
	case err := <-errChan:
		return err
	case <-time.After(oauthTimeout):
		return errors.New("oauth flow timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pendingCallbackState is set by the callback handler so CompleteAuth can be called with the
// state value the catalog client will check against what it handed out in AuthURL.
var pendingCallbackState string

func startCallbackServer(codeChan chan<- string, errChan chan<- error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if code == "" {
			errChan <- errors.New("no authorization code in callback")
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}

		pendingCallbackState = state

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Authorization successful</h1><p>You can close this window.</p></body></html>"))

		codeChan <- code
	})

	server := &http.Server{Addr: "127.0.0.1:8080", Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	return server
}
