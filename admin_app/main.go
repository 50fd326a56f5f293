package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelageech/cachebust/auth"
)

const (
	defaultHost   = ""
	defaultSecret = ""
	defaultToken  = ""
	defaultTTL    = 24 * time.Hour

	proto       = "http://"
	metricsPath = "/metrics"
)

var (
	host   = flag.String("h", defaultHost, "host:port of the metrics endpoint without protocol")
	secret = flag.String("secret", defaultSecret, "signs a new bearer token with the metrics secret and prints it")
	ttl    = flag.Duration("ttl", defaultTTL, "lifetime of the token signed with -secret")
	token  = flag.String("t", defaultToken, `bearer token without "Bearer "`)

	c = &http.Client{Timeout: 10 * time.Second}
)

func issueHandle() {
	guard, err := auth.New(*secret, log.New(os.Stderr))
	if err != nil {
		fmt.Println("Can't create the token issuer: ", err)
		os.Exit(1)
	}

	signed, err := guard.IssueToken("admin_app", *ttl)
	if err != nil {
		fmt.Println("Failed to sign the token: ", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}

func scrapeHandle() {
	req, err := http.NewRequest(http.MethodGet, proto+*host+metricsPath, nil)
	if err != nil {
		fmt.Println("An error occurred while creating a request: ", err)
		os.Exit(1)
	}
	if *token != defaultToken {
		req.Header.Add("Authorization", "Bearer "+*token)
	}

	resp, err := c.Do(req)
	if err != nil {
		fmt.Println("An error occurred while processing the request: ", err)
		os.Exit(1)
	}

	if err = handleResponse(resp, os.Stdout); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// handleResponse copies a successful response body to w.
func handleResponse(resp *http.Response, w io.Writer) error {
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("401 Unauthorized")
	}

	if !(resp.StatusCode >= 200 && resp.StatusCode < 300) {
		b, _ := io.ReadAll(resp.Body) // returns an empty slice on error
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}

	_, err := io.Copy(w, resp.Body)
	return err
}

func main() {
	flag.Parse()

	if *secret != defaultSecret {
		issueHandle()
		return
	}

	if *host == defaultHost {
		fmt.Println("Host is not defined!")
		flag.Usage()
		os.Exit(1)
	}

	if *token == defaultToken {
		fmt.Println("Warning: you have not defined a bearer token. ")
	}

	scrapeHandle()
}
