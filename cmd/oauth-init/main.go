// Command oauth-init mints the user OAuth token the Google Sheets
// report sink authenticates with. It walks the interactive browser
// consent flow once and saves the resulting token where the worker
// (GOOGLE_OAUTH_TOKEN_FILE) picks it up.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

const authTimeout = 5 * time.Minute

func main() {
	cfg, err := loadClientConfig()
	if err != nil {
		log.Fatalf("oauth client: %v", err)
	}

	port := strings.TrimSpace(os.Getenv("OAUTH_REDIRECT_PORT"))
	if port == "" {
		port = "8085"
	}
	// The OAuth client must list this URI among its authorized
	// redirect URIs.
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	code, err := waitForConsent(cfg, port)
	if err != nil {
		log.Fatalf("authorization: %v", err)
	}

	tok, err := cfg.Exchange(context.Background(), code)
	if err != nil {
		log.Fatalf("token exchange: %v", err)
	}

	outFile := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_TOKEN_FILE"))
	if outFile == "" {
		outFile = "token.json"
	}
	if err := saveToken(outFile, tok); err != nil {
		log.Fatalf("save token: %v", err)
	}
	fmt.Printf("Saved token to %s\n", outFile)
	fmt.Println("Point the worker at it with GOOGLE_OAUTH_TOKEN_FILE and keep GOOGLE_OAUTH_CLIENT_* set.")
}

func loadClientConfig() (*oauth2.Config, error) {
	inline := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON"))
	file := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"))

	var raw []byte
	var err error
	switch {
	case inline != "":
		raw = []byte(inline)
	case file != "":
		raw, err = os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
	default:
		return nil, fmt.Errorf("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
	}
	return google.ConfigFromJSON(raw, gsheet.SpreadsheetsScope)
}

// waitForConsent serves the OAuth callback on localhost, prints the
// consent URL, and blocks until the authorization code arrives, the
// flow times out, or the run is interrupted.
func waitForConsent(cfg *oauth2.Config, port string) (string, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	srv := &http.Server{Addr: ":" + port, Handler: mux}
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if e := r.URL.Query().Get("error"); e != "" {
			http.Error(w, "authorization failed: "+e, http.StatusBadRequest)
			errCh <- fmt.Errorf("consent denied: %s", e)
			return
		}
		fmt.Fprintln(w, "Authorized. You can close this tab and return to the terminal.")
		codeCh <- r.URL.Query().Get("code")
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer srv.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	fmt.Printf("Open this URL to authorize access to the spreadsheet:\n\n  %s\n\n", cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline))

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-time.After(authTimeout):
		return "", fmt.Errorf("timed out after %v", authTimeout)
	case <-interrupt:
		return "", fmt.Errorf("interrupted")
	}
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
