package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	// DefaultCallbackPort is the local port the OAuth redirect lands on
	DefaultCallbackPort = 8089
	// Timeout bounds how long Authorize waits for the browser round trip
	Timeout = 5 * time.Minute
)

var errStateMismatch = errors.New("oauth state mismatch")

const successPage = `<!DOCTYPE html>
<html><head><title>Connected</title></head>
<body style="font-family: system-ui; text-align: center; margin-top: 20vh;">
<h1>Connected to Strava</h1><p>You can close this window and return to the terminal.</p>
</body></html>`

// Authorize runs the browser login: it prints the consent URL to out,
// waits for Strava to redirect to the local callback, exchanges the code
// and saves the token.
func Authorize(ctx context.Context, cfg *oauth2.Config, store TokenStore, port int, out io.Writer) (*oauth2.Token, error) {
	state, err := newState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return nil, fmt.Errorf("starting callback server: %w", err)
	}

	codes := make(chan string, 1)
	errs := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(state, codes, errs))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			send(errs, fmt.Errorf("callback server: %w", err))
		}
	}()
	defer shutdown(server)

	fmt.Fprintf(out, "\nOpen this URL to connect Strava:\n\n  %s\n\nWaiting for authorization...\n",
		cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	var code string
	select {
	case code = <-codes:
	case err := <-errs:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging code: %w", err)
	}
	if err := store.SaveToken(tok, AthleteID(tok)); err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	return tok, nil
}

// callbackHandler delivers the authorization code from the redirect, or
// the reason there is none
func callbackHandler(state string, codes chan<- string, errs chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			send(errs, errStateMismatch)
			http.Error(w, "state mismatch", http.StatusBadRequest)
		case q.Get("error") != "":
			send(errs, fmt.Errorf("authorization denied: %s", q.Get("error")))
			http.Error(w, "authorization failed", http.StatusBadRequest)
		case q.Get("code") == "":
			send(errs, errors.New("callback without code"))
			http.Error(w, "missing code", http.StatusBadRequest)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, successPage)
			send(codes, q.Get("code"))
		}
	})
}

// send never blocks; only the first result matters
func send[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	server.Shutdown(ctx)
}
