package httputil

import (
	"net/http"
	"time"
)

type Clients struct {
	Polling *http.Client // fresh connection per call, for job status/result polling
	API     *http.Client // standard keep-alive, for job submission
}

// NewClients builds the two HTTP clients the pipeline uses. The polling
// client disables keep-alives so a reset connection from a degraded
// upstream is never reused on the next attempt.
func NewClients() *Clients {
	polling := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}

	return &Clients{
		Polling: polling,
		API:     &http.Client{Timeout: 60 * time.Second},
	}
}
