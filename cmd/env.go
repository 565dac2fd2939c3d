package main

import (
	"os"
	"os/user"

	"github.com/sells-group/cnpj-finder/internal/config"
	"github.com/sells-group/cnpj-finder/internal/model"
	"github.com/sells-group/cnpj-finder/internal/pipeline"
	"github.com/sells-group/cnpj-finder/internal/resilience"
	"github.com/sells-group/cnpj-finder/pkg/serper"
)

// searchEnv bundles the search client and breaker shared by every pipeline a
// command builds.
type searchEnv struct {
	Client  serper.Client
	Breaker *resilience.CircuitBreaker
}

func newSearchEnv(c *config.Config) *searchEnv {
	opts := []serper.Option{serper.WithTimeout(c.SearchTimeout())}
	if c.Search.BaseURL != "" {
		opts = append(opts, serper.WithBaseURL(c.Search.BaseURL))
	}
	return &searchEnv{
		Client:  serper.NewClient(c.Search.Key, opts...),
		Breaker: resilience.NewSearchBreaker(c.Search.CircuitFailureThreshold, c.Search.CircuitResetSecs),
	}
}

// Pipeline builds a pipeline over the shared client and breaker.
func (e *searchEnv) Pipeline(pc pipeline.Config) (*pipeline.Pipeline, error) {
	var opts []pipeline.Option
	if e.Breaker != nil {
		opts = append(opts, pipeline.WithCircuitBreaker(e.Breaker))
	}
	return pipeline.New(e.Client, pc, opts...)
}

// cliPrincipal identifies the local operator running a file enrichment.
func cliPrincipal() model.Principal {
	name := ""
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	if name == "" {
		name = os.Getenv("USER")
	}
	if name == "" {
		name = "local"
	}
	return model.Principal{Subject: name, Source: "cli"}
}
